// ABOUTME: Gateway wires the HTTP mux to the room service and director
// ABOUTME: Owns the http.Server lifecycle for the roundtable API

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/roundtable/internal/director"
	"github.com/2389/roundtable/internal/room"
	"github.com/2389/roundtable/internal/store"
)

// defaultTurnTimeout bounds one full scheduling turn (classification plus
// every generation call it schedules).
const defaultTurnTimeout = 2 * time.Minute

// Gateway is the HTTP front of the roundtable server.
type Gateway struct {
	store       store.Store
	rooms       *room.Service
	director    *director.Director
	logger      *slog.Logger
	turnTimeout time.Duration

	httpServer *http.Server
}

// New creates a gateway. director may be nil for a delivery-only server
// (tests use this to exercise the push channel in isolation).
func New(st store.Store, rooms *room.Service, dir *director.Director, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		store:       st,
		rooms:       rooms,
		director:    dir,
		logger:      logger.With("component", "gateway"),
		turnTimeout: defaultTurnTimeout,
	}
}

// Routes builds the API mux.
func (g *Gateway) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/rooms", g.handleRooms)
	mux.HandleFunc("/api/rooms/", g.handleRoomRoutes)
	mux.HandleFunc("/health", g.handleHealth)
	return mux
}

// Start begins serving on addr. Blocks until the server stops.
func (g *Gateway) Start(addr string) error {
	g.httpServer = &http.Server{
		Addr:              addr,
		Handler:           g.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.logger.Info("http server listening", "addr", addr)
	if err := g.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains the server gracefully.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.httpServer == nil {
		return nil
	}
	return g.httpServer.Shutdown(ctx)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
