package api

import (
	"net/http"

	"github.com/invote/invote/app/api/controller"
	"github.com/invote/invote/app/api/types"
	"go.uber.org/zap"
)

// NewServer builds the HTTP server for app.
func NewServer(app *types.App) error {
	ctler, err := controller.NewController(app)
	if err != nil {
		return err
	}

	app.Server = &http.Server{Addr: app.Config.Addr, Handler: ctler.WithCORS(ctler.NewRouter())}
	// Hijacked websocket connections are not tracked by Shutdown.
	app.Server.RegisterOnShutdown(ctler.Close)
	app.Logger.Info("Starting server", zap.String("addr", app.Config.Addr))

	return nil
}
