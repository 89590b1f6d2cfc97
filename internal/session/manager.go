package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/aretw0/humanbrowse/internal/logging"
	"github.com/aretw0/humanbrowse/pkg/domain"
	"github.com/aretw0/humanbrowse/pkg/ports"
)

// Manager tracks sessions by ID. The service is single-tenant: opening a
// fresh session closes whichever session was live before it. Closed and
// failed sessions stay in the map so status queries keep working.
type Manager struct {
	browser ports.Browser
	store   ports.SessionStore
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	activeID string
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a session manager over the given browser driver and
// status store.
func NewManager(browser ports.Browser, store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		browser:  browser,
		store:    store,
		logger:   logging.NewNop(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open returns the session to run against. With fresh true (or no session
// ID) it connects a new page and retires the previous live session.
// Reusing an ID requires the session to be ready or paused: executing
// yields ErrSessionBusy, unknown or terminal sessions ErrSessionNotFound.
func (m *Manager) Open(ctx context.Context, sessionID string, fresh bool) (*Session, error) {
	if !fresh && sessionID != "" {
		sess, err := m.Get(sessionID)
		if err != nil {
			return nil, err
		}
		switch sess.State() {
		case domain.SessionReady, domain.SessionPaused:
			return sess, nil
		case domain.SessionExecuting:
			return nil, domain.ErrSessionBusy
		default:
			return nil, domain.ErrSessionNotFound
		}
	}

	sess := newSession(uuid.NewString())
	sess.beginConnect()
	m.snapshot(ctx, sess)

	page, err := m.browser.NewPage(ctx)
	if err != nil {
		sess.Fail()
		m.snapshot(ctx, sess)
		return nil, err
	}
	sess.attach(page)

	m.mu.Lock()
	previous := m.sessions[m.activeID]
	m.sessions[sess.ID()] = sess
	m.activeID = sess.ID()
	m.mu.Unlock()

	// Single-tenant: at most one live connection.
	if previous != nil && !previous.State().Terminal() {
		if err := previous.Close(); err != nil {
			m.logger.Warn("failed to close previous session", "session_id", previous.ID(), "error", err)
		}
		m.snapshot(ctx, previous)
	}

	m.snapshot(ctx, sess)
	m.logger.Info("session opened", "session_id", sess.ID())
	return sess, nil
}

// Get returns a tracked session or ErrSessionNotFound.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// Resume clears a manual-assist pause. It does not replay any steps; it
// only makes the session ready for the next run_steps call.
func (m *Manager) Resume(ctx context.Context, sessionID string) error {
	sess, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	if err := sess.Resume(); err != nil {
		return err
	}
	m.snapshot(ctx, sess)
	m.logger.Info("session resumed", "session_id", sessionID)
	return nil
}

// Close tears the session down regardless of run status. Idempotent; run
// history is untouched.
func (m *Manager) Close(ctx context.Context, sessionID string) error {
	sess, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	if err := sess.Close(); err != nil {
		m.logger.Warn("session close reported error", "session_id", sessionID, "error", err)
	}
	m.snapshot(ctx, sess)
	m.logger.Info("session closed", "session_id", sessionID)
	return nil
}

// Status returns the observable snapshot, falling back to the status store
// for sessions this process no longer tracks.
func (m *Manager) Status(ctx context.Context, sessionID string) (domain.SessionInfo, error) {
	if sess, err := m.Get(sessionID); err == nil {
		return sess.Info(), nil
	}
	if m.store != nil {
		return m.store.Load(ctx, sessionID)
	}
	return domain.SessionInfo{}, domain.ErrSessionNotFound
}

// Snapshot persists the current observable state of a session. Exposed so
// the orchestrator can record pause/run transitions as they happen.
func (m *Manager) Snapshot(ctx context.Context, sess *Session) {
	m.snapshot(ctx, sess)
}

func (m *Manager) snapshot(ctx context.Context, sess *Session) {
	if m.store == nil || sess == nil {
		return
	}
	if err := m.store.Save(ctx, sess.Info()); err != nil {
		m.logger.Warn("failed to persist session snapshot", "session_id", sess.ID(), "error", err)
	}
}

// CloseAll closes every live session and the browser driver. Used on
// process shutdown.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	var lastErr error
	for _, sess := range sessions {
		if sess.State().Terminal() {
			continue
		}
		if err := sess.Close(); err != nil {
			lastErr = err
		}
		m.snapshot(ctx, sess)
	}
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
