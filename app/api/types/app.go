package types

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/invote/invote/pkg/db"
	"github.com/invote/invote/pkg/disclosure"
	"github.com/invote/invote/pkg/hub"
	"github.com/invote/invote/pkg/redis"
	"github.com/invote/invote/pkg/reveal"
	"github.com/invote/invote/pkg/seats"
	"go.uber.org/zap"
)

type App struct {
	Config Config

	Store  db.ElectionStore
	Policy *disclosure.Policy
	Seats  *seats.Registry

	// Hub holds this replica's live subscribers.
	Hub *hub.Hub
	// Notifier is the Hub itself, or a Redis publisher when relaying.
	Notifier hub.Notifier

	RedisClient *redis.Client
	Relay       *redis.Relay
	Announcer   *reveal.Announcer

	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server

	// Now is the clock used for time gating.
	Now func() time.Time
}

// Start serves until ctx is cancelled, then shuts everything down in order:
// no new requests, no new reveals, relay stopped, pending broadcasts
// drained, connections closed.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	var bg sync.WaitGroup
	relayCtx, stopRelay := context.WithCancel(context.Background())
	if a.Relay != nil {
		bg.Add(1)
		go func() {
			defer bg.Done()
			a.Relay.Run(relayCtx)
		}()
	}

	if a.Announcer != nil {
		if err := a.Announcer.Start(ctx, a.Config.RevealCron); err != nil {
			a.Logger.Error("Reveal announcer disabled", zap.Error(err))
		}
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}

	if a.Announcer != nil {
		a.Announcer.Stop()
	}

	stopRelay()
	bg.Wait()

	a.Hub.Close()

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	a.Logger.Info("Shutdown complete")
}
