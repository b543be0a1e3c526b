// Package retry dials flaky dependencies at startup.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/invote/invote/pkg/utils"
	"go.uber.org/zap"
)

// ErrExhausted wraps the last failure once every attempt has been used.
var ErrExhausted = errors.New("retry attempts exhausted")

// Config bounds how long startup waits for a dependency.
type Config struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Factor    float64
	// Jitter spreads each delay by up to ±Jitter of its value.
	Jitter float64
}

// DefaultConfig gives a store about two and a half minutes to come up.
func DefaultConfig() Config {
	return Config{
		Attempts:  8,
		BaseDelay: 1 * time.Second,
		MaxDelay:  30 * time.Second,
		Factor:    2.0,
		Jitter:    0.15,
	}
}

// FromEnv overrides DefaultConfig with STORE_DIAL_ATTEMPTS and
// STORE_DIAL_MAX_DELAY.
func FromEnv() Config {
	cfg := DefaultConfig()
	cfg.Attempts = utils.EnvInt("STORE_DIAL_ATTEMPTS", cfg.Attempts)
	cfg.MaxDelay = utils.EnvDuration("STORE_DIAL_MAX_DELAY", cfg.MaxDelay)
	return cfg
}

// Delay is the pause after the given failed attempt, before jitter.
func (c Config) Delay(attempt int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(c.Factor, float64(attempt-1))
	return time.Duration(math.Min(d, float64(c.MaxDelay)))
}

func (c Config) jittered(attempt int) time.Duration {
	d := c.Delay(attempt)
	if c.Jitter <= 0 {
		return d
	}
	spread := float64(d) * c.Jitter * (2*rand.Float64() - 1)
	return time.Duration(float64(d) + spread)
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as one more attempts cannot fix, such as rejected
// credentials. WithBackoff returns the wrapped error at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// WithBackoff calls dial until it succeeds, returns a Permanent error, the
// attempts run out or ctx ends. target names the dependency in logs.
func WithBackoff(ctx context.Context, cfg Config, logger *zap.Logger, target string, dial func() error) error {
	var err error

	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("dial %s cancelled: %w", target, ctxErr)
		}

		if err = dial(); err == nil {
			if attempt > 1 {
				logger.Info("Dependency reachable",
					zap.String("target", target),
					zap.Int("attempts", attempt))
			}
			return nil
		}

		var perm permanentError
		if errors.As(err, &perm) {
			logger.Error("Dependency rejected connection, not retrying",
				zap.String("target", target),
				zap.Error(perm.err))
			return perm.err
		}

		if attempt == cfg.Attempts {
			break
		}

		wait := cfg.jittered(attempt)
		logger.Warn("Dependency unreachable, waiting",
			zap.String("target", target),
			zap.Int("attempt", attempt),
			zap.Int("attempts", cfg.Attempts),
			zap.Duration("wait", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("dial %s cancelled: %w", target, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("dial %s: %w after %d attempts: %w", target, ErrExhausted, cfg.Attempts, err)
}
