// Package eventsink provides durable EventSink implementations.
package eventsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-wuieval/pkg/events"
)

// DefaultStream is the stream key used when none is configured.
const DefaultStream = "wuieval:events"

// DefaultMaxLen bounds the stream length (approximate trimming).
const DefaultMaxLen = 10000

// ErrNoClient indicates a sink constructed without a redis client.
var ErrNoClient = errors.New("redis client is required")

// streamClient is the subset of the go-redis API the sink needs.
type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamSink appends envelopes to a Redis stream with XADD.
// Each entry carries the event type, idempotency key and the JSON envelope.
type RedisStreamSink struct {
	client streamClient
	stream string
	maxLen int64
	logger *slog.Logger
}

// Option configures a RedisStreamSink.
type Option func(*RedisStreamSink)

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *RedisStreamSink) { s.logger = l.With("component", "eventsink") }
}

// NewRedisStreamSink creates a sink writing to stream. Empty stream and
// non-positive maxLen fall back to the package defaults.
func NewRedisStreamSink(client streamClient, stream string, maxLen int64, opts ...Option) (*RedisStreamSink, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	if stream == "" {
		stream = DefaultStream
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	s := &RedisStreamSink{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: slog.Default().With("component", "eventsink"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Append implements events.EventSink.
func (s *RedisStreamSink) Append(ctx context.Context, e events.Envelope) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope %s: %w", e.ID, err)
	}

	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":            e.Type,
			"idempotency_key": e.IdempotencyKey,
			"subject":         e.Subject,
			"envelope":        string(body),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}

	s.logger.Debug("event appended", "stream", s.stream, "entry_id", id, "type", e.Type)
	return nil
}

// Stream returns the stream key the sink writes to.
func (s *RedisStreamSink) Stream() string { return s.stream }
