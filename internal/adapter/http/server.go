// Package http exposes the operational endpoints for a long-running
// harvest: liveness, readiness, Prometheus metrics, and a checkpoint
// progress summary.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/snowpit-etl-service/internal/checkpoint"
)

// ReadinessChecker reports whether the harvest is making progress.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ProgressStore loads harvest progress for the /progress endpoint.
// *checkpoint.Store implements it.
type ProgressStore interface {
	Load() (*checkpoint.Progress, error)
}

// Server exposes health, readiness, metrics, and progress HTTP endpoints.
type Server struct {
	httpServer *http.Server
	progress   ProgressStore
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /progress routes. progress may be nil when the run keeps no checkpoint;
// the route then answers 404.
func NewServer(addr string, ready ReadinessChecker, progress ProgressStore, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		progress: progress,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.HandleFunc("GET /progress", s.handleProgress)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("ops server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// progressView is the compact /progress payload: counts instead of the
// checkpoint's full chunk lists, plus the ids of any failed chunks.
type progressView struct {
	CompletedChunks int       `json:"completed_chunks"`
	FailedChunks    []string  `json:"failed_chunks,omitempty"`
	TotalPits       int       `json:"total_pits"`
	StartTime       time.Time `json:"start_time"`
	LastUpdate      time.Time `json:"last_update"`
}

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	if s.progress == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no checkpoint configured"})
		return
	}

	p, err := s.progress.Load()
	if err != nil {
		s.logger.Error("loading checkpoint for progress endpoint", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	view := progressView{
		CompletedChunks: len(p.CompletedChunks),
		TotalPits:       p.TotalPits,
		StartTime:       p.StartTime,
		LastUpdate:      p.LastUpdate,
	}
	for _, f := range p.FailedChunks {
		view.FailedChunks = append(view.FailedChunks, f.ChunkID)
	}
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort ops response
}
