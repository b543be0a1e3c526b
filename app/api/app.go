package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/invote/invote/app/api/types"
	"github.com/invote/invote/pkg/db"
	"github.com/invote/invote/pkg/db/memory"
	"github.com/invote/invote/pkg/db/postgres"
	"github.com/invote/invote/pkg/db/postgres/election"
	"github.com/invote/invote/pkg/disclosure"
	"github.com/invote/invote/pkg/hub"
	"github.com/invote/invote/pkg/logging"
	"github.com/invote/invote/pkg/redis"
	"github.com/invote/invote/pkg/reveal"
	"github.com/invote/invote/pkg/seats"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	dotEnvErr := types.LoadDotEnv()

	logger, err := logging.New("api")
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}
	if dotEnvErr != nil {
		logger.Warn("Unable to load .env file", zap.Error(dotEnvErr))
	}

	config := types.LoadConfig()
	if config.SeriesIdentifier == "" {
		logger.Warn("IDENTIFIER is not set - seat writes will be rejected")
	}

	store := newStore(ctx, logger, config)

	policy := disclosure.New(config.Disclosure())
	h := hub.New(logger, hub.WithWorkers(config.HubWorkers))

	app := &types.App{
		Config:   config,
		Store:    store,
		Policy:   policy,
		Seats:    seats.New(store, config.SeriesIdentifier, logger.With(zap.String("component", "seats"))),
		Hub:      h,
		Notifier: h,
		Logger:   logger,
		Now:      time.Now,
	}

	// With Redis every replica relays notifications into its own hub.
	if config.RedisEnabled {
		redisClient, err := redis.NewClient(ctx, logger, config.Redis)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - notifications will stay on this replica",
				zap.Error(err))
		} else {
			app.RedisClient = redisClient
			app.Notifier = redis.NewPublisher(redisClient, config.RedisChannel, logger)
			app.Relay = redis.NewRelay(redisClient, config.RedisChannel, func(series string, payload json.RawMessage) {
				h.Broadcast(series, payload)
			}, logger)
			logger.Info("Redis relay enabled", zap.String("channel", config.RedisChannel))
		}
	} else {
		logger.Info("Redis disabled - notifications will stay on this replica")
	}

	if config.SeriesIdentifier != "" && policy.HiddenFor(config.SeriesIdentifier) {
		// Every replica runs its own announcer, so reveals stay local.
		app.Announcer = reveal.New(store, policy, h, logger.With(zap.String("component", "reveal")), time.Now)
	}

	return app
}

func newStore(ctx context.Context, logger *zap.Logger, config types.Config) db.ElectionStore {
	switch config.StoreDriver {
	case types.StoreDriverMemory:
		logger.Warn("Using in-memory store - data will not survive a restart")
		return memory.New()
	case types.StoreDriverPostgres:
		store, err := election.New(ctx, logger, config.DatabaseURL, postgres.DefaultPoolConfig())
		if err != nil {
			logger.Fatal("Unable to initialize election database", zap.Error(err))
		}
		return store
	default:
		logger.Fatal("Unknown store driver", zap.String("driver", config.StoreDriver))
		return nil
	}
}
