package humanbrowse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/humanbrowse/internal/artifacts"
	"github.com/aretw0/humanbrowse/pkg/config"
	"github.com/aretw0/humanbrowse/internal/engine"
	"github.com/aretw0/humanbrowse/internal/logging"
	"github.com/aretw0/humanbrowse/internal/session"
	"github.com/aretw0/humanbrowse/pkg/adapters/cdp"
	"github.com/aretw0/humanbrowse/pkg/adapters/memory"
	redisadapter "github.com/aretw0/humanbrowse/pkg/adapters/redis"
	"github.com/aretw0/humanbrowse/pkg/domain"
	"github.com/aretw0/humanbrowse/pkg/ports"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Service is the high-level entry point for the humanbrowse library. It
// wires the browser connection, the session manager, the artifact store and
// the run orchestrator behind one API.
type Service struct {
	settings     config.Settings
	browser      ports.Browser
	sessionStore ports.SessionStore
	detector     ports.BlockDetector
	store        *artifacts.Store
	sessions     *session.Manager
	orch         *engine.Orchestrator
	registry     *prometheus.Registry
	logger       *slog.Logger
}

// Option defines a functional option for configuring the Service.
type Option func(*Service)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithBrowser injects a browser implementation, bypassing the default
// DevTools connection. Tests and embedders use this.
func WithBrowser(browser ports.Browser) Option {
	return func(s *Service) {
		s.browser = browser
	}
}

// WithSessionStore injects a session-status store, bypassing the
// settings-driven choice between memory and Redis.
func WithSessionStore(store ports.SessionStore) Option {
	return func(s *Service) {
		s.sessionStore = store
	}
}

// WithBlockDetector replaces the default interstitial heuristic.
func WithBlockDetector(detector ports.BlockDetector) Option {
	return func(s *Service) {
		s.detector = detector
	}
}

// New assembles a Service from settings. Unless a browser was injected it
// probes for a running Chromium on the configured debugging port; nothing
// is launched on the caller's behalf.
func New(ctx context.Context, settings config.Settings, opts ...Option) (*Service, error) {
	svc := &Service{settings: settings}
	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = logging.NewNop()
	}

	if svc.browser == nil {
		browser, err := cdp.Connect(ctx, cdp.Config{
			Port:           settings.CDPPort,
			AllowNAT:       settings.CDPAllowNAT,
			ConnectTimeout: time.Duration(settings.CDPTimeoutMS) * time.Millisecond,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to reach browser: %w", err)
		}
		svc.browser = browser
		svc.logger.Info("connected to browser", "port", settings.CDPPort)
	}

	if svc.sessionStore == nil {
		if settings.RedisAddr != "" {
			svc.sessionStore = redisadapter.New(settings.RedisAddr, settings.RedisPassword, settings.RedisDB)
			svc.logger.Info("session store: redis", "addr", settings.RedisAddr)
		} else {
			svc.sessionStore = memory.NewStore()
		}
	}

	svc.store = artifacts.NewStore(settings.RunsDir)
	svc.sessions = session.NewManager(svc.browser, svc.sessionStore, session.WithLogger(svc.logger))

	svc.registry = prometheus.NewRegistry()
	engineOpts := []engine.Option{
		engine.WithLogger(svc.logger),
		engine.WithMetrics(engine.NewMetrics(svc.registry)),
	}
	if svc.detector != nil {
		engineOpts = append(engineOpts, engine.WithBlockDetector(svc.detector))
	}
	svc.orch = engine.NewOrchestrator(svc.sessions, svc.store, settings, engineOpts...)

	return svc, nil
}

// RunSteps executes a step sequence. See engine.Orchestrator.RunSteps.
func (s *Service) RunSteps(ctx context.Context, req domain.RunRequest) (domain.RunResult, error) {
	return s.orch.RunSteps(ctx, req)
}

// Resume clears a manual-assist pause on the session.
func (s *Service) Resume(ctx context.Context, sessionID string) error {
	return s.orch.Resume(ctx, sessionID)
}

// CloseSession closes the session; run history stays on disk.
func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	return s.orch.CloseSession(ctx, sessionID)
}

// SessionStatus returns the observable session snapshot.
func (s *Service) SessionStatus(ctx context.Context, sessionID string) (domain.SessionInfo, error) {
	return s.orch.SessionStatus(ctx, sessionID)
}

// ListRuns returns run metadata, newest first.
func (s *Service) ListRuns() ([]domain.Run, error) {
	return s.orch.ListRuns()
}

// GetRun returns the full decoded view of one run.
func (s *Service) GetRun(runID string) (*domain.RunDetail, error) {
	return s.orch.GetRun(runID)
}

// Orchestrator exposes the engine for adapters.
func (s *Service) Orchestrator() *engine.Orchestrator {
	return s.orch
}

// ArtifactStore exposes the run artifact store for adapters.
func (s *Service) ArtifactStore() *artifacts.Store {
	return s.store
}

// MetricsRegistry exposes the prometheus registry for the /metrics route.
func (s *Service) MetricsRegistry() *prometheus.Registry {
	return s.registry
}

// Close tears down every live session and drops the browser connection.
func (s *Service) Close(ctx context.Context) error {
	s.sessions.CloseAll(ctx)
	return s.browser.Close()
}
