package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(":memory:", zap.NewNop())
	require.NoError(t, err)

	return store
}

func TestStoreNodes(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip by owner and identifier", func(t *testing.T) {
		store := newTestStore(t)

		rec := &NodeRecord{
			Identifier:   "user-123",
			OwnerID:      "123",
			Host:         "lava.example.com",
			Port:         2333,
			Password:     "secret",
			IsActive:     true,
			AutoFallback: true,
			AddedAt:      time.Now(),
		}
		require.NoError(t, store.SaveNode(ctx, rec))

		byOwner, err := store.NodeByOwner(ctx, "123")
		require.NoError(t, err)
		assert.Equal(t, "user-123", byOwner.Identifier)
		assert.Equal(t, 2333, byOwner.Port)

		byID, err := store.NodeByIdentifier(ctx, "user-123")
		require.NoError(t, err)
		assert.Equal(t, "123", byID.OwnerID)
	})

	t.Run("missing records return ErrNotFound", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.NodeByOwner(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = store.NodeByIdentifier(ctx, "user-nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("save updates in place", func(t *testing.T) {
		store := newTestStore(t)

		rec := &NodeRecord{Identifier: "user-1", OwnerID: "1", Host: "a", Port: 1, IsActive: true}
		require.NoError(t, store.SaveNode(ctx, rec))

		rec.RetryCount = 5
		rec.IsActive = false
		rec.LastError = "node unreachable"
		require.NoError(t, store.SaveNode(ctx, rec))

		got, err := store.NodeByIdentifier(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 5, got.RetryCount)
		assert.False(t, got.IsActive)
		assert.Equal(t, "node unreachable", got.LastError)
	})

	t.Run("delete removes the record", func(t *testing.T) {
		store := newTestStore(t)

		require.NoError(t, store.SaveNode(ctx, &NodeRecord{Identifier: "user-9", OwnerID: "9", Host: "h", Port: 1}))
		require.NoError(t, store.DeleteNode(ctx, "user-9"))

		_, err := store.NodeByIdentifier(ctx, "user-9")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("active nodes filter", func(t *testing.T) {
		store := newTestStore(t)

		require.NoError(t, store.SaveNode(ctx, &NodeRecord{Identifier: "user-a", OwnerID: "a", Host: "h", Port: 1, IsActive: true}))
		require.NoError(t, store.SaveNode(ctx, &NodeRecord{Identifier: "user-b", OwnerID: "b", Host: "h", Port: 1, IsActive: false}))

		active, err := store.ActiveNodes(ctx)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "user-a", active[0].Identifier)
	})
}

func TestStoreGuildSettings(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	assert.False(t, store.GuildAlwaysOn(ctx, "guild-1"), "missing settings default to off")

	require.NoError(t, store.SetGuildAlwaysOn(ctx, "guild-1", true))
	assert.True(t, store.GuildAlwaysOn(ctx, "guild-1"))

	require.NoError(t, store.SetGuildAlwaysOn(ctx, "guild-1", false))
	assert.False(t, store.GuildAlwaysOn(ctx, "guild-1"))
}
