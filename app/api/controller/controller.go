package controller

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sync"

	"github.com/gorilla/mux"
	"github.com/invote/invote/app/api/types"
)

type Controller struct {
	App     *types.App
	Origins []*regexp.Regexp

	// closing is cancelled when the HTTP server shuts down so long-lived
	// websocket handlers can hang up.
	closing context.Context
	close   context.CancelFunc
	conns   sync.WaitGroup
}

// NewController returns a new controller.
func NewController(app *types.App) (*Controller, error) {
	origins := make([]*regexp.Regexp, 0, len(app.Config.CORSOrigins))
	for _, expr := range app.Config.CORSOrigins {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid CORS origin %q: %w", expr, err)
		}
		origins = append(origins, re)
	}

	closing, cancel := context.WithCancel(context.Background())
	return &Controller{
		App:     app,
		Origins: origins,
		closing: closing,
		close:   cancel,
	}, nil
}

// Close hangs up every live websocket connection and waits for their
// handlers to return.
func (c *Controller) Close() {
	c.close()
	c.conns.Wait()
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	r.HandleFunc("/stats", c.HandleStats).Methods(http.MethodGet)
	r.HandleFunc("/stats/timestamp", c.HandleTimestamps).Methods(http.MethodGet)
	r.HandleFunc("/stats/series-identifiers", c.HandleSeriesIdentifiers).Methods(http.MethodGet)
	r.HandleFunc("/stats/total/{series_identifier}", c.HandleSeriesTotal).Methods(http.MethodGet)
	r.HandleFunc("/stats/seats/{series_identifier}", c.HandleSeats).Methods(http.MethodGet)

	r.Handle("/add-ballot", c.RequireAPIKey(http.HandlerFunc(c.HandleAddBallot))).Methods(http.MethodPost)
	r.Handle("/add-seat", c.RequireAPIKey(http.HandlerFunc(c.HandleAddSeat))).Methods(http.MethodPost)

	r.HandleFunc("/ws", c.HandleWebSocket).Methods(http.MethodGet)

	return r
}

// allowedOrigin reports whether origin matches one of the configured patterns.
func (c *Controller) allowedOrigin(origin string) bool {
	for _, re := range c.Origins {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}

// WithCORS is a middleware that adds CORS headers for allowed origins.
func (c *Controller) WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		w.Header().Add("Vary", "Origin")

		if origin != "" && c.allowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)
		}

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
