package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/invote/invote/pkg/db"
	"github.com/invote/invote/pkg/disclosure"
	"go.uber.org/zap"
)

// BoxResult is one entry of the per-box listing.
type BoxResult struct {
	Timestamp time.Time         `json:"timestamp"`
	Results   disclosure.Result `json:"results"`
}

// HandleStats returns the overall tally, optionally narrowed to one box.
func (c *Controller) HandleStats(w http.ResponseWriter, r *http.Request) {
	filter := db.TallyFilter{}
	if raw := r.URL.Query().Get("timestamp_box"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid timestamp_box")
			return
		}
		box := time.UnixMilli(ms).UTC()
		filter.Box = &box
	}

	rows, err := c.App.Store.FetchBallotTallies(r.Context(), filter)
	if err != nil {
		c.storeError(w, "fetch tallies", err)
		return
	}

	writeJSON(w, http.StatusOK, disclosure.Disclose(rows, c.App.Policy.Hidden("")))
}

// HandleTimestamps lists per-box tallies newest first. Boxes of a gated
// series only appear once their reveal time has passed.
func (c *Controller) HandleTimestamps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	series := r.URL.Query().Get("series_identifier")
	hidden := c.App.Policy.Hidden(series)

	boxes, err := c.App.Store.FetchDistinctBoxTimestamps(ctx, series)
	if err != nil {
		c.storeError(w, "fetch box timestamps", err)
		return
	}

	visible := c.App.Policy.GateBoxes(boxes, c.App.Now(), hidden)
	results := make([]BoxResult, 0, len(visible))
	for _, box := range visible {
		rows, err := c.App.Store.FetchBallotTallies(ctx, db.TallyFilter{Series: series, Box: &box})
		if err != nil {
			c.storeError(w, "fetch box tallies", err)
			return
		}
		results = append(results, BoxResult{
			Timestamp: box,
			Results:   disclosure.Disclose(rows, hidden),
		})
	}

	writeJSON(w, http.StatusOK, results)
}

// HandleSeriesTotal returns the tally of one named series. Only the
// configured series is anonymized.
func (c *Controller) HandleSeriesTotal(w http.ResponseWriter, r *http.Request) {
	series := mux.Vars(r)["series_identifier"]

	rows, err := c.App.Store.FetchBallotTallies(r.Context(), db.TallyFilter{Series: series})
	if err != nil {
		c.storeError(w, "fetch series tallies", err)
		return
	}

	writeJSON(w, http.StatusOK, disclosure.Disclose(rows, c.App.Policy.HiddenFor(series)))
}

// HandleSeats returns the seats of a series ordered by index.
func (c *Controller) HandleSeats(w http.ResponseWriter, r *http.Request) {
	series := mux.Vars(r)["series_identifier"]

	seats, err := c.App.Seats.Seats(r.Context(), series)
	if err != nil {
		c.storeError(w, "fetch seats", err)
		return
	}
	writeJSON(w, http.StatusOK, seats)
}

func (c *Controller) HandleSeriesIdentifiers(w http.ResponseWriter, r *http.Request) {
	series, err := c.App.Store.FetchDistinctSeriesIdentifiers(r.Context())
	if err != nil {
		c.storeError(w, "fetch series identifiers", err)
		return
	}
	if series == nil {
		series = []string{}
	}

	writeJSON(w, http.StatusOK, series)
}

func (c *Controller) storeError(w http.ResponseWriter, op string, err error) {
	c.App.Logger.Error("Store operation failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}
