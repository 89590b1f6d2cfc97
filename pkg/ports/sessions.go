package ports

import (
	"context"

	"github.com/aretw0/humanbrowse/pkg/domain"
)

// SessionStore persists observable session snapshots so that status queries
// survive across adapters (and, with the Redis backend, across restarts).
// The connection handle itself is never stored; only the SessionInfo view.
type SessionStore interface {
	// Save persists the snapshot for info.SessionID.
	Save(ctx context.Context, info domain.SessionInfo) error

	// Load retrieves a snapshot, or domain.ErrSessionNotFound.
	Load(ctx context.Context, sessionID string) (domain.SessionInfo, error)

	// Delete removes the snapshot for a session.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
