package domain

import "time"

// SessionState is the lifecycle state of one browser connection.
//
//	disconnected → connecting → ready ⇄ executing
//	executing → paused (manual assist) → ready (resume)
//	any non-terminal → failed (connection loss)
//	any → closed
type SessionState string

const (
	SessionDisconnected SessionState = "disconnected"
	SessionConnecting   SessionState = "connecting"
	SessionReady        SessionState = "ready"
	SessionExecuting    SessionState = "executing"
	SessionPaused       SessionState = "paused"
	SessionFailed       SessionState = "failed"
	SessionClosed       SessionState = "closed"
)

// Terminal reports whether the session can never execute another step.
func (s SessionState) Terminal() bool {
	return s == SessionClosed || s == SessionFailed
}

// SessionInfo is the observable snapshot of a session, safe to persist and
// to return from status queries. The connection handle itself never leaves
// the session state machine.
type SessionInfo struct {
	SessionID    string              `json:"session_id"`
	State        SessionState        `json:"state"`
	CreatedAt    time.Time           `json:"created_at"`
	LastActive   time.Time           `json:"last_active"`
	LastRunID    string              `json:"last_run_id,omitempty"`
	ManualAssist *ManualAssistRecord `json:"manual_assist,omitempty"`
}
