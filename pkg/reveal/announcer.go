// Package reveal announces boxes of the gated series as they become visible.
package reveal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/invote/invote/pkg/db"
	"github.com/invote/invote/pkg/disclosure"
	"github.com/invote/invote/pkg/hub"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSpec runs once a minute, on the minute.
const DefaultSpec = "0 * * * * *"

// Announcer notifies subscribers of every box whose reveal instant falls
// between two consecutive ticks.
type Announcer struct {
	store    db.BallotStore
	policy   *disclosure.Policy
	notifier hub.Notifier
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.Mutex
	last time.Time

	cron *cron.Cron
}

// New returns an announcer that treats construction time as the last tick,
// so boxes revealed before startup are not announced again.
func New(store db.BallotStore, policy *disclosure.Policy, notifier hub.Notifier, logger *zap.Logger, now func() time.Time) *Announcer {
	if now == nil {
		now = time.Now
	}
	return &Announcer{
		store:    store,
		policy:   policy,
		notifier: notifier,
		logger:   logger,
		now:      now,
		last:     now(),
	}
}

// Tick announces boxes revealed in (last tick, now] and returns how many.
func (a *Announcer) Tick(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	series := a.policy.Config().SensitiveSeries
	now := a.now()

	boxes, err := a.store.FetchDistinctBoxTimestamps(ctx, series)
	if err != nil {
		return 0, fmt.Errorf("fetch box timestamps: %w", err)
	}

	announced := 0
	// Oldest first so subscribers see reveals in order.
	for i := len(boxes) - 1; i >= 0; i-- {
		at := a.policy.RevealAt(boxes[i])
		if at.After(a.last) && !at.After(now) {
			a.notifier.Notify(ctx, series, hub.NewBoxRevealed(boxes[i]))
			announced++
		}
	}
	a.last = now

	if announced > 0 {
		a.logger.Info("Boxes revealed", zap.String("series", series), zap.Int("count", announced))
	}
	return announced, nil
}

// Start schedules Tick on spec (cron format with seconds).
func (a *Announcer) Start(ctx context.Context, spec string) error {
	logger := cronLogger{a.logger.Sugar()}
	a.cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	_, err := a.cron.AddFunc(spec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, 25*time.Second)
		defer cancel()
		if _, err := a.Tick(rctx); err != nil {
			a.logger.Warn("Reveal tick failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reveal announcer: %w", err)
	}

	a.cron.Start()
	a.logger.Info("Reveal announcer started", zap.String("cronSpec", spec))
	return nil
}

// Stop waits for a running tick to finish.
func (a *Announcer) Stop() {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
