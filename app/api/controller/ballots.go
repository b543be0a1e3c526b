package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/invote/invote/pkg/db/models/election"
	"go.uber.org/zap"
)

// testBallotID marks smoke-test submissions from counting stations.
const testBallotID = "TEST"

var errMissingTimestamps = errors.New("timestamp_box and timestamp_ballot are required")

// AddBallotRequest is the body of POST /add-ballot. Timestamps are epoch
// milliseconds.
type AddBallotRequest struct {
	ID              *string `json:"id"`
	Value           *string `json:"value"`
	TimestampBox    *int64  `json:"timestamp_box"`
	TimestampBallot *int64  `json:"timestamp_ballot"`
}

func (req AddBallotRequest) validate() error {
	if req.TimestampBox == nil || req.TimestampBallot == nil {
		return errMissingTimestamps
	}
	return nil
}

// decodeStrict decodes a JSON body rejecting unknown fields and trailing data.
func decodeStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: unexpected trailing data")
	}
	return nil
}

func (c *Controller) HandleAddBallot(w http.ResponseWriter, r *http.Request) {
	var req AddBallotRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.ID != nil && *req.ID == testBallotID {
		writeError(w, http.StatusInternalServerError, "Test ballot not allowed!")
		return
	}

	ballot := election.Ballot{
		ID:               req.ID,
		Value:            req.Value,
		TimestampBox:     time.UnixMilli(*req.TimestampBox).UTC(),
		TimestampBallot:  time.UnixMilli(*req.TimestampBallot).UTC(),
		SeriesIdentifier: c.App.Config.SeriesIdentifier,
	}

	if err := c.App.Store.InsertBallot(r.Context(), ballot); err != nil {
		c.storeError(w, "insert ballot", err)
		return
	}

	c.App.Logger.Debug("Ballot recorded",
		zap.String("series", ballot.SeriesIdentifier),
		zap.Time("timestamp_box", ballot.TimestampBox))

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
