package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/humanbrowse/pkg/domain"
)

// RunSessionStoreContract verifies that a SessionStore implementation
// adheres to the interface contract. Adapter test packages call this with a
// freshly constructed store.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		info := domain.SessionInfo{
			SessionID:  sessionID,
			State:      domain.SessionReady,
			CreatedAt:  time.Now().UTC().Truncate(time.Second),
			LastActive: time.Now().UTC().Truncate(time.Second),
			LastRunID:  "run-1",
		}
		require.NoError(t, store.Save(ctx, info))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, info.SessionID, loaded.SessionID)
		assert.Equal(t, domain.SessionReady, loaded.State)
		assert.Equal(t, "run-1", loaded.LastRunID)
	})

	t.Run("Overwrite", func(t *testing.T) {
		info := domain.SessionInfo{SessionID: sessionID, State: domain.SessionPaused}
		require.NoError(t, store.Save(ctx, info))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionPaused, loaded.State)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.SessionInfo{SessionID: sessionID + "-b", State: domain.SessionReady}))

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, sessionID)
		assert.Contains(t, ids, sessionID+"-b")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, sessionID))
		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}
