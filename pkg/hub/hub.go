// Package hub fans live notifications out to every connected subscriber.
package hub

import (
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// DefaultWorkers bounds how many sends run at once.
const DefaultWorkers = 16

// ErrDelivery wraps a failed send to a single subscriber.
var ErrDelivery = errors.New("delivery failed")

// Subscriber receives encoded envelopes. Send must not block for long; slow
// subscribers should drop the message and return an error instead.
type Subscriber interface {
	Send(msg []byte) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(msg []byte) error

func (f SubscriberFunc) Send(msg []byte) error { return f(msg) }

// Envelope is the wire format of every notification.
type Envelope struct {
	Series    string    `json:"s"`
	Timestamp time.Time `json:"t"`
	Data      any       `json:"d"`
}

// Hub is a process-wide subscriber registry.
type Hub struct {
	logger *zap.Logger
	now    func() time.Time

	subs   *xsync.Map[uint64, Subscriber]
	nextID atomic.Uint64

	pool   pond.Pool
	closed atomic.Bool
}

// Option configures a Hub.
type Option func(*options)

type options struct {
	workers int
	now     func() time.Time
}

// WithWorkers sets the fan-out concurrency.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithClock overrides the envelope timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a hub with its own worker pool.
func New(logger *zap.Logger, opts ...Option) *Hub {
	o := options{workers: DefaultWorkers, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Hub{
		logger: logger,
		now:    o.now,
		subs:   xsync.NewMap[uint64, Subscriber](),
		pool:   pond.NewPool(o.workers),
	}
}

// Subscribe registers sub and returns the id to unsubscribe with.
func (h *Hub) Subscribe(sub Subscriber) uint64 {
	id := h.nextID.Add(1)
	h.subs.Store(id, sub)
	h.logger.Debug("Subscriber joined", zap.Uint64("id", id), zap.Int("subscribers", h.subs.Size()))
	return id
}

// Unsubscribe removes a subscriber. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id uint64) {
	if _, ok := h.subs.LoadAndDelete(id); ok {
		h.logger.Debug("Subscriber left", zap.Uint64("id", id), zap.Int("subscribers", h.subs.Size()))
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int { return h.subs.Size() }

// Delivery tracks the sends started by one Broadcast.
type Delivery struct {
	group     pond.TaskGroup
	attempted int
	failed    atomic.Int32
}

// Wait blocks until every send of the broadcast finished and reports how
// many were attempted and how many failed.
func (d *Delivery) Wait() (attempted, failed int) {
	if d.group != nil {
		_ = d.group.Wait()
	}
	return d.attempted, int(d.failed.Load())
}

// Broadcast sends payload to every subscriber connected right now. It
// returns without waiting for the sends; failures are logged per subscriber.
func (h *Hub) Broadcast(series string, payload any) *Delivery {
	d := &Delivery{}
	if h.closed.Load() {
		h.logger.Warn("Broadcast after hub closed", zap.String("series", series))
		return d
	}

	msg, err := json.Marshal(Envelope{Series: series, Timestamp: h.now(), Data: payload})
	if err != nil {
		h.logger.Error("Failed to encode broadcast", zap.String("series", series), zap.Error(err))
		return d
	}

	type target struct {
		id  uint64
		sub Subscriber
	}
	targets := make([]target, 0, h.subs.Size())
	h.subs.Range(func(id uint64, sub Subscriber) bool {
		targets = append(targets, target{id: id, sub: sub})
		return true
	})
	if len(targets) == 0 {
		return d
	}

	tasks := make([]func(), len(targets))
	for i, t := range targets {
		t := t
		tasks[i] = func() {
			if err := t.sub.Send(msg); err != nil {
				d.failed.Add(1)
				h.logger.Debug("Subscriber send failed",
					zap.Uint64("id", t.id),
					zap.String("series", series),
					zap.Error(errors.Join(ErrDelivery, err)))
			}
		}
	}
	d.attempted = len(tasks)
	d.group = h.pool.NewGroup()
	d.group.Submit(tasks...)
	return d
}

// Close stops accepting broadcasts and waits for pending sends.
func (h *Hub) Close() {
	if h.closed.Swap(true) {
		return
	}
	h.pool.StopAndWait()
	h.logger.Info("Hub drained", zap.Int("subscribers", h.subs.Size()))
}
