package controller

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/invote/invote/app/api/types"
	"github.com/invote/invote/pkg/db/models/election"
	"github.com/invote/invote/pkg/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSeatBroadcastsOnlyChanges(t *testing.T) {
	h := newHarness(t, nil)
	rec := &recorder{}
	h.app.Hub.Subscribe(rec)

	post := func(body string) {
		t.Helper()
		resp := h.do(t, http.MethodPost, "/add-seat", body, authed())
		require.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"success":true}`, resp.Body.String())
	}

	post(`{"index":1,"value":"PH"}`)
	post(`{"index":1,"value":"PH"}`)
	post(`{"index":1,"value":"BN"}`)
	post(`{"index":1}`)
	post(`{"index":1}`)

	h.app.Hub.Close()

	envs := rec.envelopes(t)
	require.Len(t, envs, 3)

	var parties []*string
	for _, env := range envs {
		assert.Equal(t, testSeries, env.Series)
		assert.True(t, env.Timestamp.Equal(now))

		var payload hub.SeatUpdated
		raw, err := json.Marshal(env.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &payload))
		assert.Equal(t, hub.EventSeatUpdated, payload.Event)
		assert.Equal(t, 1, payload.Index)
		parties = append(parties, payload.Party)
	}
	assert.ElementsMatch(t, []*string{election.StrPtr("PH"), election.StrPtr("BN"), nil}, parties)
}

func TestAddSeatListing(t *testing.T) {
	h := newHarness(t, nil)

	for _, body := range []string{`{"index":2,"value":"BN"}`, `{"index":0,"value":"PH"}`, `{"index":1}`} {
		require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/add-seat", body, authed()).Code)
	}

	rec := h.do(t, http.MethodGet, "/stats/seats/"+testSeries, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"index":0,"party":"PH"},{"index":1,"party":null},{"index":2,"party":"BN"}]`, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/stats/seats/OTHER", nil, nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAddSeatErrors(t *testing.T) {
	t.Run("unauthorised", func(t *testing.T) {
		h := newHarness(t, nil)
		rec := h.do(t, http.MethodPost, "/add-seat", `{"index":1,"value":"PH"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Not authorised!", decodeError(t, rec))
	})

	t.Run("series not configured", func(t *testing.T) {
		h := newHarness(t, func(cfg *types.Config) { cfg.SeriesIdentifier = "" })
		rec := h.do(t, http.MethodPost, "/add-seat", `{"index":1,"value":"PH"}`, authed())
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "series identifier not configured", decodeError(t, rec))
	})

	t.Run("negative index", func(t *testing.T) {
		h := newHarness(t, nil)
		rec := h.do(t, http.MethodPost, "/add-seat", `{"index":-1,"value":"PH"}`, authed())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing index", func(t *testing.T) {
		h := newHarness(t, nil)
		rec := h.do(t, http.MethodPost, "/add-seat", `{"value":"PH"}`, authed())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		h := newHarness(t, nil)
		rec := h.do(t, http.MethodPost, "/add-seat", `{"index":1,"party":"PH"}`, authed())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		h := newHarness(t, nil)
		rec := &recorder{}
		h.app.Hub.Subscribe(rec)
		h.failWrites(assert.AnError)

		resp := h.do(t, http.MethodPost, "/add-seat", `{"index":1,"value":"PH"}`, authed())
		assert.Equal(t, http.StatusInternalServerError, resp.Code)

		h.app.Hub.Close()
		assert.Empty(t, rec.envelopes(t))
	})
}
