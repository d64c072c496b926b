package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-wuieval/internal/config"
	"github.com/ahrav/go-wuieval/internal/evalclient"
	"github.com/ahrav/go-wuieval/internal/eventsink"
	"github.com/ahrav/go-wuieval/pkg/events"
)

// InitializeEvalClient creates the evaluation service client.
func InitializeEvalClient(cfg evalclient.Config, logger *slog.Logger) (*evalclient.Client, error) {
	client, err := evalclient.New(cfg, evalclient.WithLogger(logger.With("component", "evalclient")))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize evaluation client: %w", err)
	}
	return client, nil
}

// InitializeEventSink creates the configured event sink and a function
// releasing its resources. The redis backend is checked with a PING.
func InitializeEventSink(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) (events.EventSink, func() error, error) {
	switch cfg.Backend {
	case config.EventsRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		sink, err := eventsink.NewRedisStreamSink(rdb, cfg.Redis.Stream, cfg.Redis.MaxLen, eventsink.WithLogger(logger))
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		logger.Info("events go to redis stream", "addr", cfg.Redis.Addr, "stream", sink.Stream())
		return sink, rdb.Close, nil
	case config.EventsMemory:
		return events.NewMemorySink(), func() error { return nil }, nil
	default:
		return events.NewNoOpEventSink(), func() error { return nil }, nil
	}
}
