// Package seats tracks which party holds each seat of the configured series.
package seats

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/invote/invote/pkg/db"
	"github.com/invote/invote/pkg/db/models/election"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

var (
	// ErrConfiguration is returned when no series identifier is configured.
	ErrConfiguration = errors.New("series identifier not configured")
	// ErrInvalidIndex is returned for negative seat indexes.
	ErrInvalidIndex = errors.New("seat index must not be negative")
)

type seatKey struct {
	series string
	index  int
}

// Registry serializes writes per seat and reports whether a write changed
// the visible party.
type Registry struct {
	store  db.SeatStore
	series string
	logger *zap.Logger

	// One mutex per seat ever written; seat counts are small and bounded.
	locks *xsync.Map[seatKey, *sync.Mutex]
}

// New returns a registry writing to the given series.
func New(store db.SeatStore, series string, logger *zap.Logger) *Registry {
	return &Registry{
		store:  store,
		series: series,
		logger: logger,
		locks:  xsync.NewMap[seatKey, *sync.Mutex](),
	}
}

// Series returns the series this registry writes to.
func (r *Registry) Series() string { return r.series }

// Upsert stores party for the seat at index and reports whether the stored
// party differs from what was there before. A seat that did not exist counts
// as changed whatever the new party is.
func (r *Registry) Upsert(ctx context.Context, index int, party *string) (bool, error) {
	if r.series == "" {
		return false, ErrConfiguration
	}
	if index < 0 {
		return false, ErrInvalidIndex
	}

	key := seatKey{series: r.series, index: index}
	mu, _ := r.locks.LoadOrStore(key, &sync.Mutex{})
	mu.Lock()
	defer mu.Unlock()

	var changed bool
	err := r.store.LockSeat(ctx, r.series, index, func(ctx context.Context) error {
		prev, err := r.store.FetchSeat(ctx, r.series, index)
		if err != nil {
			return fmt.Errorf("fetch seat %d: %w", index, err)
		}

		changed = prev == nil || !election.SameParty(prev.Party, party)

		seat := election.Seat{Index: index, Party: party, SeriesIdentifier: r.series}
		if err := r.store.UpsertSeat(ctx, seat); err != nil {
			return fmt.Errorf("upsert seat %d: %w", index, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	r.logger.Debug("Seat upserted",
		zap.String("series", r.series),
		zap.Int("index", index),
		zap.Bool("changed", changed))

	return changed, nil
}

// Seats lists the seats of any series ordered by index.
func (r *Registry) Seats(ctx context.Context, series string) ([]election.Seat, error) {
	seats, err := r.store.FetchSeats(ctx, series)
	if err != nil {
		return nil, fmt.Errorf("fetch seats for %s: %w", series, err)
	}
	if seats == nil {
		seats = []election.Seat{}
	}
	return seats, nil
}
