package db

import (
	"context"
	"time"

	"github.com/invote/invote/pkg/db/models/election"
)

// TallyFilter narrows a tally query. Zero values mean "no filter".
type TallyFilter struct {
	Series string
	Box    *time.Time
}

// BallotStore provides row-level access to persisted ballots.
type BallotStore interface {
	// FetchBallotTallies groups ballots by value ordered by votes descending.
	FetchBallotTallies(ctx context.Context, filter TallyFilter) ([]election.TallyRow, error)
	// FetchDistinctBoxTimestamps returns box close times, newest first.
	FetchDistinctBoxTimestamps(ctx context.Context, series string) ([]time.Time, error)
	// FetchDistinctSeriesIdentifiers returns every known series, descending.
	FetchDistinctSeriesIdentifiers(ctx context.Context) ([]string, error)
	InsertBallot(ctx context.Context, ballot election.Ballot) error
}

// SeatStore provides row-level access to persisted seats.
type SeatStore interface {
	// FetchSeats returns the seats of a series ordered by index.
	FetchSeats(ctx context.Context, series string) ([]election.Seat, error)
	// FetchSeat returns nil, nil when the seat has never been written.
	FetchSeat(ctx context.Context, series string, index int) (*election.Seat, error)
	// UpsertSeat inserts or overwrites the seat keyed by (index, series).
	UpsertSeat(ctx context.Context, seat election.Seat) error
	// LockSeat runs fn while holding an exclusive lock on (series, index).
	// Store calls made with the ctx passed to fn join the locked unit of work.
	LockSeat(ctx context.Context, series string, index int, fn func(ctx context.Context) error) error
}

// ElectionStore is the full gateway used by the API.
type ElectionStore interface {
	BallotStore
	SeatStore
	Ping(ctx context.Context) error
	Close() error
}
