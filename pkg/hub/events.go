package hub

import (
	"context"
	"time"
)

const (
	EventSeatUpdated = "seat.updated"
	EventBoxRevealed = "box.revealed"
)

// Notifier delivers a payload to live subscribers of a series, either
// directly through a Hub or via a relay that feeds every replica's Hub.
type Notifier interface {
	Notify(ctx context.Context, series string, payload any)
}

// Notify implements Notifier for local-only deployments.
func (h *Hub) Notify(_ context.Context, series string, payload any) {
	h.Broadcast(series, payload)
}

// SeatUpdated is sent when a seat's party changes.
type SeatUpdated struct {
	Event string  `json:"event"`
	Index int     `json:"index"`
	Party *string `json:"party"`
}

func NewSeatUpdated(index int, party *string) SeatUpdated {
	return SeatUpdated{Event: EventSeatUpdated, Index: index, Party: party}
}

// BoxRevealed is sent once a gated box passes its reveal time.
type BoxRevealed struct {
	Event        string    `json:"event"`
	TimestampBox time.Time `json:"timestamp_box"`
}

func NewBoxRevealed(box time.Time) BoxRevealed {
	return BoxRevealed{Event: EventBoxRevealed, TimestampBox: box}
}
