package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/chat-widget/internal/domain"
)

func TestMemoryStoreIdentity(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, found, err := store.LoadIdentity(ctx, "app/key")
	require.NoError(t, err)
	assert.False(t, found)

	identity := domain.NewIdentity()
	require.NoError(t, store.SaveIdentity(ctx, "app/key", identity))

	loaded, found, err := store.LoadIdentity(ctx, "app/key")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, identity, loaded)

	// Identities are scoped per widget key.
	_, found, err = store.LoadIdentity(ctx, "app/other")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreIncompleteIdentityNotFound(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveIdentity(ctx, "app/key", domain.Identity{UserID: "u1"}))
	_, found, err := store.LoadIdentity(ctx, "app/key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreAutoStartMarker(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	done, err := store.AutoStartCompleted(ctx, "app/key")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, store.MarkAutoStartCompleted(ctx, "app/key"))

	done, err = store.AutoStartCompleted(ctx, "app/key")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = store.AutoStartCompleted(ctx, "app/other")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestMemoryStorePendingStartIsTakeOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SetPendingStart(ctx, "app/key", "I need help"))

	text, err := store.TakePendingStart(ctx, "app/key")
	require.NoError(t, err)
	assert.Equal(t, "I need help", text)

	text, err = store.TakePendingStart(ctx, "app/key")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestNewStoreFallsBackToMemory(t *testing.T) {
	store := NewStore(nil)
	_, ok := store.(*MemoryStore)
	assert.True(t, ok)
}
