package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCalculateNextBackoff(t *testing.T) {
	tests := []struct {
		name         string
		current      time.Duration
		max          time.Duration
		factor       float64
		jitterFactor float64
		expectMin    time.Duration
		expectMax    time.Duration
	}{
		{
			name:         "initial backoff doubles",
			current:      1 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.1,
			expectMin:    1800 * time.Millisecond,
			expectMax:    2200 * time.Millisecond,
		},
		{
			name:         "respects maximum",
			current:      20 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.1,
			expectMin:    27 * time.Second,
			expectMax:    30 * time.Second,
		},
		{
			name:         "no jitter produces exact value",
			current:      5 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.0,
			expectMin:    10 * time.Second,
			expectMax:    10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 10; i++ {
				result := CalculateNextBackoff(tt.current, tt.max, tt.factor, tt.jitterFactor)
				assert.GreaterOrEqual(t, result, tt.expectMin)
				assert.LessOrEqual(t, result, tt.expectMax)
			}
		})
	}
}

func TestRelayMessageFormat(t *testing.T) {
	raw, err := encodeMessage("PRN2026", map[string]any{"event": "seat.updated", "index": 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"PRN2026","d":{"event":"seat.updated","index":3}}`, string(raw))

	series, data, err := decodeMessage(string(raw))
	require.NoError(t, err)
	assert.Equal(t, "PRN2026", series)
	assert.JSONEq(t, `{"event":"seat.updated","index":3}`, string(data))

	_, _, err = decodeMessage(`{"d":{}}`)
	assert.Error(t, err)
	_, _, err = decodeMessage(`not json`)
	assert.Error(t, err)
}

func TestRelayProcessDelivers(t *testing.T) {
	type delivered struct {
		series string
		data   json.RawMessage
	}
	got := make(chan delivered, 4)
	r := NewRelay(nil, DefaultChannel, func(series string, data json.RawMessage) {
		got <- delivered{series, data}
	}, zaptest.NewLogger(t))

	ch := make(chan *redis.Message, 3)
	ch <- &redis.Message{Channel: DefaultChannel, Payload: `garbage`}
	ch <- &redis.Message{Channel: DefaultChannel, Payload: `{"s":"S1","d":{"index":1}}`}
	close(ch)

	err := r.process(context.Background(), ch)
	require.NoError(t, err, "closed channel ends processing cleanly")

	require.Len(t, got, 1)
	d := <-got
	assert.Equal(t, "S1", d.series)
	assert.JSONEq(t, `{"index":1}`, string(d.data))
}

func TestRelayProcessStopsOnCancel(t *testing.T) {
	r := NewRelay(nil, DefaultChannel, func(string, json.RawMessage) {}, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.process(ctx, make(chan *redis.Message))
	assert.ErrorIs(t, err, context.Canceled)
}
