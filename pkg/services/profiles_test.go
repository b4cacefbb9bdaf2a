package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calledit/calledit-server/pkg/identity"
	"github.com/calledit/calledit-server/pkg/models"
	"github.com/calledit/calledit-server/pkg/store"
)

func TestProfileCache_Resolve(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	cache := NewProfileCache(st, 16, time.Minute)

	require.NoError(t, st.PutUser(ctx, &models.User{
		ID:          "alice",
		DisplayName: "Alice",
		PhotoURL:    "https://example.com/alice.png",
	}))

	t.Run("serves from the store on first use", func(t *testing.T) {
		prof := cache.Resolve(ctx, "alice")
		assert.Equal(t, "Alice", prof.DisplayName)
		assert.Equal(t, "https://example.com/alice.png", prof.PhotoURL)
	})

	t.Run("serves cached copies until the entry expires", func(t *testing.T) {
		stale := cache.Resolve(ctx, "alice")
		require.Equal(t, "Alice", stale.DisplayName)

		// A store update is invisible through the cache within the TTL.
		user, err := st.GetUser(ctx, "alice")
		require.NoError(t, err)
		user.DisplayName = "Alicia"
		require.NoError(t, st.PutUser(ctx, user))

		assert.Equal(t, "Alice", cache.Resolve(ctx, "alice").DisplayName)
	})

	t.Run("put replaces the cached entry", func(t *testing.T) {
		cache.Put(models.Profile{UserID: "alice", DisplayName: "Alicia"})
		assert.Equal(t, "Alicia", cache.Resolve(ctx, "alice").DisplayName)
	})

	t.Run("unknown users resolve to a placeholder", func(t *testing.T) {
		prof := cache.Resolve(ctx, "ghost")
		assert.Equal(t, "ghost", prof.UserID)
		assert.Equal(t, identity.DefaultDisplayName, prof.DisplayName)
		assert.Empty(t, prof.PhotoURL)
	})

	t.Run("placeholders are not cached", func(t *testing.T) {
		require.Equal(t, identity.DefaultDisplayName, cache.Resolve(ctx, "late").DisplayName)

		require.NoError(t, st.PutUser(ctx, &models.User{ID: "late", DisplayName: "Late Larry"}))
		assert.Equal(t, "Late Larry", cache.Resolve(ctx, "late").DisplayName)
	})
}
