// ABOUTME: Gateway orchestrator wiring store, routing, messaging, presence and transport
// ABOUTME: Owns the HTTP server lifecycle including graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/meridianbank/advisor-gateway/internal/auth"
	"github.com/meridianbank/advisor-gateway/internal/config"
	"github.com/meridianbank/advisor-gateway/internal/identity"
	"github.com/meridianbank/advisor-gateway/internal/messaging"
	"github.com/meridianbank/advisor-gateway/internal/metrics"
	"github.com/meridianbank/advisor-gateway/internal/presence"
	"github.com/meridianbank/advisor-gateway/internal/routing"
	"github.com/meridianbank/advisor-gateway/internal/store"
	"github.com/meridianbank/advisor-gateway/internal/ws"
)

// Gateway wires the advisor-gateway server components together.
type Gateway struct {
	config     *config.Config
	store      store.Store
	directory  identity.Directory
	verifier   *auth.JWTVerifier
	routing    *routing.Engine
	messaging  *messaging.Service
	registry   *presence.Registry
	rooms      *presence.Rooms
	metrics    *metrics.Metrics
	wsHandler  *ws.Handler
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds a gateway from configuration. The SQLite store is opened (and
// its schema created) here.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	directory := identity.NewStoreDirectory(st)
	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	registry := presence.NewRegistry(logger)
	rooms := presence.NewRooms()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	engine := routing.NewEngine(st, directory, logger)
	delivery := ws.NewDelivery(registry, rooms, logger)
	svc := messaging.NewService(st, directory, engine, delivery, logger)

	wsHandler := ws.NewHandler(verifier, directory, svc, registry, rooms, m, ws.Options{
		OnlineBroadcastDelay: cfg.Presence.OnlineBroadcastDelay,
		WriteTimeout:         cfg.Presence.WriteTimeout,
		SendBuffer:           cfg.Presence.SendBuffer,
	}, logger)

	gw := &Gateway{
		config:    cfg,
		store:     st,
		directory: directory,
		verifier:  verifier,
		routing:   engine,
		messaging: svc,
		registry:  registry,
		rooms:     rooms,
		metrics:   m,
		wsHandler: wsHandler,
		logger:    logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", gw.handleHealth)
	mux.Handle("/ws", wsHandler)
	gw.registerAPIRoutes(mux)

	if m != nil {
		mux.Handle(cfg.Metrics.Path, m.Handler())
		logger.Info("metrics endpoint enabled", "path", cfg.Metrics.Path)
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server
// fails, then shuts down gracefully.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.config.Server.HTTPAddr, err)
	}

	g.logger.Info("gateway listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
	case serverErr = <-errCh:
		g.logger.Error("HTTP server failed", "error", serverErr)
	}

	shutdownErr := g.shutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// shutdown stops the HTTP server and closes the store.
func (g *Gateway) shutdown() error {
	g.logger.Info("shutting down gateway")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// handleHealth responds to unauthenticated health checks.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","online_sessions":%d}`, g.registry.Count())
}
