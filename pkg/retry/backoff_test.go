package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fastConfig() Config {
	return Config{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Factor: 2}
}

func TestWithBackoff(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := WithBackoff(context.Background(), fastConfig(), logger, "postgres", func() error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		refused := errors.New("connection refused")
		calls := 0
		err := WithBackoff(context.Background(), fastConfig(), logger, "postgres", func() error {
			calls++
			return refused
		})
		require.ErrorIs(t, err, refused)
		require.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent errors stop immediately", func(t *testing.T) {
		badPassword := errors.New("password authentication failed")
		calls := 0
		err := WithBackoff(context.Background(), fastConfig(), logger, "postgres", func() error {
			calls++
			return Permanent(badPassword)
		})
		require.ErrorIs(t, err, badPassword)
		assert.NotErrorIs(t, err, ErrExhausted)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := WithBackoff(ctx, fastConfig(), logger, "postgres", func() error {
			calls++
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls)
	})
}

func TestDelayCapsAtMax(t *testing.T) {
	cfg := Config{BaseDelay: time.Second, MaxDelay: 4 * time.Second, Factor: 2}
	assert.Equal(t, time.Second, cfg.Delay(1))
	assert.Equal(t, 2*time.Second, cfg.Delay(2))
	assert.Equal(t, 4*time.Second, cfg.Delay(5))
}

func TestJitterStaysInBounds(t *testing.T) {
	cfg := Config{BaseDelay: time.Second, MaxDelay: time.Minute, Factor: 2, Jitter: 0.15}
	for i := 0; i < 100; i++ {
		d := cfg.jittered(2)
		assert.GreaterOrEqual(t, d, 1700*time.Millisecond)
		assert.LessOrEqual(t, d, 2300*time.Millisecond)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("STORE_DIAL_ATTEMPTS", "3")
	t.Setenv("STORE_DIAL_MAX_DELAY", "5s")

	cfg := FromEnv()
	assert.Equal(t, 3, cfg.Attempts)
	assert.Equal(t, 5*time.Second, cfg.MaxDelay)
	assert.Equal(t, DefaultConfig().BaseDelay, cfg.BaseDelay)
}
