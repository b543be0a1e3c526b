// Package memory is an in-process election store used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/invote/invote/pkg/db"
	"github.com/invote/invote/pkg/db/models/election"
	"github.com/invote/invote/pkg/tally"
	"github.com/puzpuzpuz/xsync/v4"
)

var _ db.ElectionStore = (*Store)(nil)

type seatKey struct {
	series string
	index  int
}

// Store keeps ballots and seats in memory. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	ballots []election.Ballot
	seats   map[seatKey]election.Seat

	seatLocks *xsync.Map[seatKey, *sync.Mutex]
}

// New returns an empty store.
func New() *Store {
	return &Store{
		seats:     make(map[seatKey]election.Seat),
		seatLocks: xsync.NewMap[seatKey, *sync.Mutex](),
	}
}

func (s *Store) FetchBallotTallies(_ context.Context, filter db.TallyFilter) ([]election.TallyRow, error) {
	s.mu.RLock()
	scoped := make([]election.Ballot, 0, len(s.ballots))
	for _, b := range s.ballots {
		if filter.Series != "" && b.SeriesIdentifier != filter.Series {
			continue
		}
		if filter.Box != nil && !b.TimestampBox.Equal(*filter.Box) {
			continue
		}
		scoped = append(scoped, b)
	}
	s.mu.RUnlock()

	return tally.Aggregate(scoped), nil
}

func (s *Store) FetchDistinctBoxTimestamps(_ context.Context, series string) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]bool)
	out := make([]time.Time, 0)
	for _, b := range s.ballots {
		if series != "" && b.SeriesIdentifier != series {
			continue
		}
		key := b.TimestampBox.UnixNano()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b.TimestampBox)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out, nil
}

func (s *Store) FetchDistinctSeriesIdentifiers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, b := range s.ballots {
		if !seen[b.SeriesIdentifier] {
			seen[b.SeriesIdentifier] = true
			out = append(out, b.SeriesIdentifier)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

func (s *Store) InsertBallot(_ context.Context, ballot election.Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ballots = append(s.ballots, ballot)
	return nil
}

// BallotCount returns how many ballots were inserted.
func (s *Store) BallotCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ballots)
}

func (s *Store) FetchSeats(_ context.Context, series string) ([]election.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]election.Seat, 0)
	for k, seat := range s.seats {
		if k.series == series {
			out = append(out, seat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *Store) FetchSeat(_ context.Context, series string, index int) (*election.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seat, ok := s.seats[seatKey{series: series, index: index}]
	if !ok {
		return nil, nil
	}
	return &seat, nil
}

func (s *Store) UpsertSeat(_ context.Context, seat election.Seat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seat.Party != nil {
		seat.Party = election.StrPtr(*seat.Party)
	}
	s.seats[seatKey{series: seat.SeriesIdentifier, index: seat.Index}] = seat
	return nil
}

func (s *Store) LockSeat(ctx context.Context, series string, index int, fn func(ctx context.Context) error) error {
	mu, _ := s.seatLocks.LoadOrStore(seatKey{series: series, index: index}, &sync.Mutex{})
	mu.Lock()
	defer mu.Unlock()
	return fn(ctx)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
