// Package server exposes the status endpoints of a running archive.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/agleyzer/dvrarchive/internal/archive"
	"github.com/agleyzer/dvrarchive/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// Server serves health and Prometheus metrics while an archive runs
type Server struct {
	addr       string
	runID      string
	halt       *archive.Halt
	metrics    *metrics.Metrics
	logger     *slog.Logger
	httpServer *http.Server
}

// New creates a new status server listening on addr
func New(addr, runID string, halt *archive.Halt, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		runID:   runID,
		halt:    halt,
		metrics: m,
		logger:  logger,
	}
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.loggingMiddleware)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	return r
}

// Start starts the HTTP server and blocks until ctx is done
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
	}

	// Start server in a goroutine
	go func() {
		s.logger.Info("starting status server", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("status server error", "error", err)
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	s.logger.Info("shutting down status server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// handleHealth reports whether the run is still going or winding down
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	halted := s.halt.Raised()
	if halted {
		status = "halting"
	}

	health := map[string]interface{}{
		"status": status,
		"halted": halted,
		"run_id": s.runID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap the response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
