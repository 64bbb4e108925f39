// Package server exposes the router over HTTP: event notifications arrive on
// POST /events, with /healthz and /metrics alongside. The event endpoint
// stands in for the storage platform's push delivery; redeliverable failures
// answer 500 so the sender retries.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/scribe/internal/observability"
	"github.com/haasonsaas/scribe/internal/orchestrator"
)

// maxEventBody bounds a notification payload; transcripts themselves never
// travel in the event.
const maxEventBody = 1 << 20

// Server hosts the HTTP surface.
type Server struct {
	orch   *orchestrator.Orchestrator
	health *orchestrator.HealthCheck
	logger *observability.Logger

	httpServer *http.Server
	listener   net.Listener
}

// New creates the server. The health check may be nil; /healthz then reports
// only liveness.
func New(orch *orchestrator.Orchestrator, health *orchestrator.HealthCheck, logger *observability.Logger) *Server {
	return &Server{orch: orch, health: health, logger: logger}
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /events", s.handleEvents)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start listens on addr and serves until Shutdown.
func (s *Server) Start(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "http server error", "error", err)
		}
	}()

	s.logger.Info(ctx, "http server listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound listen address, for tests using ":0".
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody+1))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxEventBody {
		http.Error(w, "notification too large", http.StatusRequestEntityTooLarge)
		return
	}

	notification, err := orchestrator.ParseNotification(body)
	if err != nil {
		s.logger.Warn(r.Context(), "rejecting malformed notification", "error", err)
		http.Error(w, "malformed notification", http.StatusBadRequest)
		return
	}

	correlationID := r.Header.Get("X-Correlation-Id")
	if err := s.orch.HandleNotification(r.Context(), notification, correlationID); err != nil {
		// The aggregate or errors/ record is already written; 500 asks the
		// sender to redeliver.
		s.logger.Error(r.Context(), "notification processing failed", "error", err)
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.health == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
		return
	}

	report := s.health.Run(r.Context())
	if !report.OK {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	writeJSON(w, report)
}
