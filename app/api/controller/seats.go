package controller

import (
	"errors"
	"net/http"

	"github.com/invote/invote/pkg/hub"
	"github.com/invote/invote/pkg/seats"
	"go.uber.org/zap"
)

// AddSeatRequest is the body of POST /add-seat. Value is the party; omitting
// it clears the seat.
type AddSeatRequest struct {
	Index *int    `json:"index"`
	Value *string `json:"value"`
}

func (c *Controller) HandleAddSeat(w http.ResponseWriter, r *http.Request) {
	var req AddSeatRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Index == nil {
		writeError(w, http.StatusBadRequest, "index is required")
		return
	}

	ctx := r.Context()
	changed, err := c.App.Seats.Upsert(ctx, *req.Index, req.Value)
	switch {
	case errors.Is(err, seats.ErrInvalidIndex):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, seats.ErrConfiguration):
		c.App.Logger.Error("Seat write rejected", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	case err != nil:
		c.storeError(w, "upsert seat", err)
		return
	}

	if changed {
		c.App.Notifier.Notify(ctx, c.App.Seats.Series(), hub.NewSeatUpdated(*req.Index, req.Value))
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
