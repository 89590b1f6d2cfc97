// Package memory provides an in-memory ports.SessionStore, the default
// backend for single-process deployments and tests.
package memory

import (
	"context"
	"sync"

	"github.com/aretw0/humanbrowse/pkg/domain"
)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.SessionInfo
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.SessionInfo),
	}
}

// Save persists the snapshot in memory.
func (s *Store) Save(ctx context.Context, info domain.SessionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[info.SessionID] = info
	return nil
}

// Load retrieves the snapshot from memory.
func (s *Store) Load(ctx context.Context, sessionID string) (domain.SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.data[sessionID]
	if !ok {
		return domain.SessionInfo{}, domain.ErrSessionNotFound
	}
	return info, nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns the stored session IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	return sessions, nil
}
