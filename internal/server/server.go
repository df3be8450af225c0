package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Vinitharameshchand/akai-itoo/internal/config"
	"github.com/Vinitharameshchand/akai-itoo/internal/metrics"
	"github.com/Vinitharameshchand/akai-itoo/internal/signaling"
	"github.com/Vinitharameshchand/akai-itoo/internal/waitlist"
)

// Server is the relay's HTTP front: websocket endpoint, health, metrics,
// room statistics and the waitlist API.
type Server struct {
	cfg        *config.Server
	hub        *signaling.Hub
	collector  metrics.Collector
	waitlist   *waitlist.Handler
	router     *mux.Router
	httpServer *http.Server
}

// New wires the routes. waitlistHandler may be nil when the waitlist is
// disabled.
func New(cfg *config.Server, hub *signaling.Hub, collector metrics.Collector, waitlistHandler *waitlist.Handler) *Server {
	if collector == nil {
		collector = metrics.Nop{}
	}
	s := &Server{
		cfg:       cfg,
		hub:       hub,
		collector: collector,
		waitlist:  waitlistHandler,
		router:    mux.NewRouter(),
	}
	s.routes()

	s.httpServer = &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	return s
}

func (s *Server) routes() {
	s.router.Use(Recovery, Logging, Metrics(s.collector))

	s.router.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.collector.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc(s.cfg.WebSocket.Path, ServeWs(s.hub, newUpgrader(s.cfg.WebSocket), s.cfg.RateLimit.Policy()))

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rooms", roomsHandler(s.hub.Registry())).Methods(http.MethodGet)
	if s.waitlist != nil {
		api.HandleFunc("/waitlist", s.waitlist.Join).Methods(http.MethodPost)
		api.HandleFunc("/waitlist", s.waitlist.List).Methods(http.MethodGet)
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l until ctx is done, then shuts down within
// the configured timeout.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting relay server", "address", l.Addr().String(), "ws_path", s.cfg.WebSocket.Path)
		errCh <- s.httpServer.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down relay server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.HTTP.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.HTTP.Address, err)
	}
	return s.Serve(ctx, l)
}
