// Package http exposes the run orchestrator over a JSON API. One route per
// operation; artifact files are served read-only from the runs directory.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/humanbrowse/internal/engine"
	"github.com/aretw0/humanbrowse/internal/logging"
	"github.com/aretw0/humanbrowse/pkg/domain"
)

// Orchestrator is the engine surface the API needs.
type Orchestrator interface {
	RunSteps(ctx context.Context, req engine.RunRequest) (engine.RunResult, error)
	Resume(ctx context.Context, sessionID string) error
	CloseSession(ctx context.Context, sessionID string) error
	SessionStatus(ctx context.Context, sessionID string) (domain.SessionInfo, error)
	ListRuns() ([]domain.Run, error)
	GetRun(runID string) (*domain.RunDetail, error)
}

// ArtifactFS serves stored run artifacts by relative path.
type ArtifactFS interface {
	RunDir(runID string) string
}

// Server handles the JSON API routes.
type Server struct {
	engine    Orchestrator
	artifacts ArtifactFS
	logger    *slog.Logger
	registry  *prometheus.Registry
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsRegistry exposes the registry on GET /metrics.
func WithMetricsRegistry(registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

// NewHandler builds the API handler.
func NewHandler(orch Orchestrator, artifacts ArtifactFS, opts ...Option) http.Handler {
	server := &Server{
		engine:    orch,
		artifacts: artifacts,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Get("/health", server.Health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/run_steps", server.RunSteps)
		r.Post("/resume", server.Resume)
		r.Post("/close_session", server.CloseSession)
		r.Get("/session_status", server.SessionStatus)
		r.Get("/runs", server.ListRuns)
		r.Get("/runs/{runID}", server.GetRun)
		r.Get("/runs/{runID}/artifacts/*", server.GetArtifact)
	})
	if server.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(server.registry, promhttp.HandlerOpts{}))
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RunSteps handles POST /v1/run_steps.
func (s *Server) RunSteps(w http.ResponseWriter, r *http.Request) {
	var req engine.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("run_steps: invalid request body", "error", err)
		return
	}

	result, err := s.engine.RunSteps(r.Context(), req)
	if err != nil {
		s.writeError(w, "run_steps", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

// Resume handles POST /v1/resume.
func (s *Server) Resume(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("resume: invalid request body", "error", err)
		return
	}
	if err := s.engine.Resume(r.Context(), req.SessionID); err != nil {
		s.writeError(w, "resume", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed", "session_id": req.SessionID})
}

// CloseSession handles POST /v1/close_session.
func (s *Server) CloseSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("close_session: invalid request body", "error", err)
		return
	}
	if err := s.engine.CloseSession(r.Context(), req.SessionID); err != nil {
		s.writeError(w, "close_session", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed", "session_id": req.SessionID})
}

// SessionStatus handles GET /v1/session_status.
func (s *Server) SessionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	info, err := s.engine.SessionStatus(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, "session_status", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ListRuns handles GET /v1/runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.engine.ListRuns()
	if err != nil {
		s.writeError(w, "runs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// GetRun handles GET /v1/runs/{runID}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	detail, err := s.engine.GetRun(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, "run detail", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// GetArtifact handles GET /v1/runs/{runID}/artifacts/*. The wildcard is the
// relative path a run record referenced (screenshots/..., html/...).
func (s *Server) GetArtifact(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	rel := chi.URLParam(r, "*")

	// The run log only emits clean relative references; anything that
	// escapes after cleaning is an attack, not a typo.
	cleaned := path.Clean("/" + rel)
	if cleaned == "/" || strings.Contains(rel, "..") {
		http.Error(w, "Invalid artifact path", http.StatusBadRequest)
		return
	}

	if _, err := s.engine.GetRun(runID); err != nil {
		s.writeError(w, "artifact", err)
		return
	}
	http.ServeFile(w, r, path.Join(s.artifacts.RunDir(runID), cleaned))
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	var stepErr *domain.StepError
	switch {
	case errors.As(err, &stepErr) && stepErr.Kind == domain.KindValidation:
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnsupportedStep):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSessionBusy):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNoPendingAssist), errors.Is(err, domain.ErrSessionClosed):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", "error", err)
	} else {
		s.logger.Warn(op+" rejected", "error", err, "status", status)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug(fmt.Sprintf("response encode failed: %v", err))
	}
}
