package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel carries every live notification.
const DefaultChannel = "invote:notifications"

// relayMessage is what travels through Redis between replicas.
type relayMessage struct {
	Series string          `json:"s"`
	Data   json.RawMessage `json:"d"`
}

// Publisher hands notifications to Redis so every replica's hub sees them.
type Publisher struct {
	client  *Client
	channel string
	logger  *zap.Logger
}

// NewPublisher returns a publisher writing to channel.
func NewPublisher(client *Client, channel string, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, channel: channel, logger: logger}
}

// Notify publishes payload for series. Errors are logged only.
func (p *Publisher) Notify(ctx context.Context, series string, payload any) {
	msg, err := encodeMessage(series, payload)
	if err != nil {
		p.logger.Error("Failed to encode relay message", zap.String("series", series), zap.Error(err))
		return
	}
	p.client.Publish(ctx, p.channel, msg)
}

func encodeMessage(series string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(relayMessage{Series: series, Data: data})
}

func decodeMessage(raw string) (string, json.RawMessage, error) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return "", nil, err
	}
	if msg.Series == "" {
		return "", nil, errors.New("relay message without series")
	}
	return msg.Series, msg.Data, nil
}

// DeliverFunc receives relayed notifications on this replica.
type DeliverFunc func(series string, payload json.RawMessage)

// Relay subscribes to the notification channel and hands each message to
// deliver, reconnecting with backoff while ctx is alive.
type Relay struct {
	client  *Client
	channel string
	deliver DeliverFunc
	logger  *zap.Logger
}

// NewRelay returns a relay for channel.
func NewRelay(client *Client, channel string, deliver DeliverFunc, logger *zap.Logger) *Relay {
	return &Relay{client: client, channel: channel, deliver: deliver, logger: logger}
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	const (
		initialBackoff = 1 * time.Second
		maxBackoff     = 30 * time.Second
		backoffFactor  = 2.0
		jitterFactor   = 0.1
	)

	backoff := initialBackoff
	attemptNum := 0

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Redis relay stopped")
			return
		default:
		}

		attemptNum++
		err := r.attempt(ctx, attemptNum)

		if ctx.Err() != nil {
			r.logger.Info("Redis relay stopped")
			return
		}

		if err != nil {
			r.logger.Warn("Redis relay subscription failed, will retry",
				zap.Error(err),
				zap.Int("attempt", attemptNum),
				zap.Duration("backoff", backoff))
		} else {
			r.logger.Warn("Redis relay channel closed, will retry",
				zap.Int("attempt", attemptNum),
				zap.Duration("backoff", backoff))
			backoff = initialBackoff
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			r.logger.Info("Redis relay stopped during backoff")
			return
		}

		backoff = CalculateNextBackoff(backoff, maxBackoff, backoffFactor, jitterFactor)
	}
}

func (r *Relay) attempt(ctx context.Context, attemptNum int) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			r.logger.Error("Error closing Redis subscription", zap.Error(err))
		}
	}()

	receiveCtx, receiveCancel := context.WithTimeout(ctx, 5*time.Second)
	defer receiveCancel()

	if _, err := pubsub.Receive(receiveCtx); err != nil {
		return fmt.Errorf("failed to confirm Redis subscription: %w", err)
	}

	r.logger.Info("Redis relay subscribed",
		zap.String("channel", r.channel),
		zap.Int("attempt", attemptNum))

	return r.process(ctx, pubsub.Channel())
}

func (r *Relay) process(ctx context.Context, ch <-chan *redis.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *Relay) handle(raw string) {
	series, data, err := decodeMessage(raw)
	if err != nil {
		r.logger.Error("Dropping malformed relay message", zap.Error(err))
		return
	}
	r.deliver(series, data)
}

// CalculateNextBackoff calculates the next backoff duration with exponential growth and jitter.
func CalculateNextBackoff(current, max time.Duration, factor, jitterFactor float64) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		next = max
	}

	jitter := float64(next) * jitterFactor * (2*rand.Float64() - 1)
	nextWithJitter := time.Duration(float64(next) + jitter)

	if nextWithJitter < current {
		nextWithJitter = current
	}
	if nextWithJitter > max {
		nextWithJitter = max
	}

	return nextWithJitter
}
