// Package session owns the browsing session lifecycle: the state machine
// guarding single-flight step execution and the manager tracking the one
// live session plus the history of closed ones.
package session

import (
	"sync"
	"time"

	"github.com/aretw0/humanbrowse/pkg/domain"
	"github.com/aretw0/humanbrowse/pkg/ports"
)

// Session is one live connection to a browser instance. It owns its page
// handle exclusively; the handle is only reachable through AcquireForStep,
// which doubles as the single-flight gate.
type Session struct {
	id        string
	createdAt time.Time

	mu         sync.Mutex
	page       ports.Page
	state      domain.SessionState
	lastActive time.Time
	lastRunID  string
	lastAssist *domain.ManualAssistRecord
}

func newSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		id:         id,
		state:      domain.SessionDisconnected,
		createdAt:  now,
		lastActive: now,
	}
}

// beginConnect transitions disconnected → connecting while the browser
// driver establishes the page.
func (s *Session) beginConnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionDisconnected {
		return
	}
	s.state = domain.SessionConnecting
	s.lastActive = time.Now().UTC()
}

// attach completes the connect: connecting → ready with the page handle.
func (s *Session) attach(page ports.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionConnecting {
		return
	}
	s.page = page
	s.state = domain.SessionReady
	s.lastActive = time.Now().UTC()
}

// ID returns the opaque session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info returns the observable snapshot used for status queries and the
// session store. The connection handle is never part of it.
func (s *Session) Info() domain.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionInfo{
		SessionID:    s.id,
		State:        s.state,
		CreatedAt:    s.createdAt,
		LastActive:   s.lastActive,
		LastRunID:    s.lastRunID,
		ManualAssist: s.lastAssist,
	}
}

// AcquireForStep transitions ready → executing and hands out the page
// handle for exactly one step. It fails with ErrSessionBusy when a step is
// already in flight; this is the sole mutual-exclusion mechanism.
func (s *Session) AcquireForStep() (ports.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case domain.SessionReady:
		s.state = domain.SessionExecuting
		s.lastActive = time.Now().UTC()
		return s.page, nil
	case domain.SessionExecuting:
		return nil, domain.ErrSessionBusy
	case domain.SessionClosed, domain.SessionFailed:
		return nil, domain.ErrSessionClosed
	default:
		return nil, domain.ErrSessionBusy
	}
}

// Release transitions executing → next. Only ready and paused are valid
// next states; anything else is ignored so a late release can never revive
// a closed session.
func (s *Session) Release(next domain.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionExecuting {
		return
	}
	if next != domain.SessionReady && next != domain.SessionPaused {
		return
	}
	s.state = next
	s.lastActive = time.Now().UTC()
}

// Pause records the manual-assist evidence alongside the paused state.
// Valid while executing (the blocking step is still holding the session).
func (s *Session) Pause(assist *domain.ManualAssistRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionExecuting && s.state != domain.SessionReady {
		return
	}
	s.state = domain.SessionPaused
	s.lastAssist = assist
	s.lastActive = time.Now().UTC()
}

// Resume transitions paused → ready. The assist record is kept in history
// (the run log); only the live pointer is cleared.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionPaused {
		return domain.ErrNoPendingAssist
	}
	s.state = domain.SessionReady
	s.lastAssist = nil
	s.lastActive = time.Now().UTC()
	return nil
}

// Fail marks the session failed after unrecoverable connection loss.
func (s *Session) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.SessionClosed {
		return
	}
	s.state = domain.SessionFailed
	s.lastActive = time.Now().UTC()
}

// Paused reports whether the session is waiting on manual assist, along
// with the stored evidence.
func (s *Session) Paused() (*domain.ManualAssistRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionPaused {
		return nil, false
	}
	return s.lastAssist, true
}

// SetLastRun records the most recent run ID for status queries.
func (s *Session) SetLastRun(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRunID = runID
	s.lastActive = time.Now().UTC()
}

// LastRun returns the most recent run ID, if any.
func (s *Session) LastRun() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunID
}

// Close releases the connection handle and transitions to closed from any
// state. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == domain.SessionClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = domain.SessionClosed
	s.lastActive = time.Now().UTC()
	page := s.page
	s.page = nil
	s.mu.Unlock()

	if page != nil {
		return page.Close()
	}
	return nil
}
