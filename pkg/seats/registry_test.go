package seats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/invote/invote/pkg/db/memory"
	"github.com/invote/invote/pkg/db/models/election"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var s = election.StrPtr

// recordingStore logs every seat write in the order the store applied it.
type recordingStore struct {
	*memory.Store
	mu     sync.Mutex
	writes []*string
}

func (r *recordingStore) UpsertSeat(ctx context.Context, seat election.Seat) error {
	if err := r.Store.UpsertSeat(ctx, seat); err != nil {
		return err
	}
	r.mu.Lock()
	r.writes = append(r.writes, seat.Party)
	r.mu.Unlock()
	return nil
}

// failingStore rejects seat writes while err is set.
type failingStore struct {
	*memory.Store
	err atomic.Pointer[error]
}

func (f *failingStore) UpsertSeat(ctx context.Context, seat election.Seat) error {
	if err := f.err.Load(); err != nil {
		return *err
	}
	return f.Store.UpsertSeat(ctx, seat)
}

func TestUpsertDetectsChanges(t *testing.T) {
	ctx := context.Background()
	reg := New(memory.New(), "PRN2026", zaptest.NewLogger(t))

	steps := []struct {
		party   *string
		changed bool
	}{
		{s("A"), true},
		{s("A"), false},
		{s("B"), true},
		{nil, true},
		{nil, false},
		{s("B"), true},
	}
	for i, step := range steps {
		changed, err := reg.Upsert(ctx, 5, step.party)
		require.NoError(t, err)
		assert.Equal(t, step.changed, changed, "step %d", i)
	}

	seats, err := reg.Seats(ctx, "PRN2026")
	require.NoError(t, err)
	require.Len(t, seats, 1)
	assert.Equal(t, 5, seats[0].Index)
	assert.Equal(t, "B", *seats[0].Party)
}

func TestUpsertNullIntoEmptyIsAChange(t *testing.T) {
	reg := New(memory.New(), "PRN2026", zaptest.NewLogger(t))
	changed, err := reg.Upsert(context.Background(), 0, nil)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestUpsertRequiresSeries(t *testing.T) {
	store := memory.New()
	reg := New(store, "", zaptest.NewLogger(t))

	changed, err := reg.Upsert(context.Background(), 1, s("A"))
	require.ErrorIs(t, err, ErrConfiguration)
	assert.False(t, changed)

	seats, err := store.FetchSeats(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, seats)
}

func TestUpsertRejectsNegativeIndex(t *testing.T) {
	reg := New(memory.New(), "PRN2026", zaptest.NewLogger(t))
	_, err := reg.Upsert(context.Background(), -1, s("A"))
	require.ErrorIs(t, err, ErrInvalidIndex)
}

func TestUpsertStoreFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: memory.New()}
	reg := New(store, "PRN2026", zaptest.NewLogger(t))

	_, err := reg.Upsert(ctx, 2, s("A"))
	require.NoError(t, err)

	boom := errors.New("connection reset")
	store.err.Store(&boom)
	changed, err := reg.Upsert(ctx, 2, s("B"))
	require.ErrorIs(t, err, boom)
	assert.False(t, changed)

	store.err.Store(nil)
	seat, err := store.FetchSeat(ctx, "PRN2026", 2)
	require.NoError(t, err)
	assert.Equal(t, "A", *seat.Party)
}

func TestConcurrentUpsertsSameKey(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{Store: memory.New()}
	reg := New(store, "PRN2026", zaptest.NewLogger(t))

	const writers = 64
	parties := []*string{s("A"), s("B"), nil, s("A")}

	var changedCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			changed, err := reg.Upsert(ctx, 7, parties[i%len(parties)])
			assert.NoError(t, err)
			if changed {
				changedCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, store.writes, writers)

	// Replay the applied order serially and count the real transitions.
	var expected int32
	var prev *string
	for i, p := range store.writes {
		if i == 0 || !election.SameParty(prev, p) {
			expected++
		}
		prev = p
	}
	assert.Equal(t, expected, changedCount.Load())

	seat, err := store.FetchSeat(ctx, "PRN2026", 7)
	require.NoError(t, err)
	assert.True(t, election.SameParty(store.writes[writers-1], seat.Party), "final value is the last applied write")
}

func TestConcurrentUpsertsDifferentKeys(t *testing.T) {
	ctx := context.Background()
	reg := New(memory.New(), "PRN2026", zaptest.NewLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			changed, err := reg.Upsert(ctx, i, s(fmt.Sprintf("P%d", i)))
			assert.NoError(t, err)
			assert.True(t, changed)
		}(i)
	}
	wg.Wait()

	seats, err := reg.Seats(ctx, "PRN2026")
	require.NoError(t, err)
	require.Len(t, seats, 32)
	for i, seat := range seats {
		assert.Equal(t, i, seat.Index)
	}
}
