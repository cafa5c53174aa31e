package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetMissing(t *testing.T) {
	s := NewStore().Scope("visitor-1")

	value, found, err := s.Get(context.Background(), "cookie-consent")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, value)
}

func TestStoreSetOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore().Scope("visitor-1")

	require.NoError(t, s.Set(ctx, "cookie-preferences", "first"))
	require.NoError(t, s.Set(ctx, "cookie-preferences", "second"))

	value, found, err := s.Get(ctx, "cookie-preferences")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "second", value)
}

func TestStoreVisitorsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Scope("a").Set(ctx, "cookie-consent", "yes"))

	_, found, err := store.Scope("b").Get(ctx, "cookie-consent")
	require.NoError(t, err)
	assert.False(t, found)

	// IDs containing separators stay apart from shorter IDs
	require.NoError(t, store.Scope("a:b").Set(ctx, "k", "v"))
	_, found, err = store.Scope("a").Get(ctx, "b|k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCountVisitors(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Scope("a").Set(ctx, "cookie-consent", "yes"))
	require.NoError(t, store.Scope("a").Set(ctx, "cookie-preferences", "{}"))
	require.NoError(t, store.Scope("b|c").Set(ctx, "cookie-consent", "yes"))

	n, err := store.CountVisitors(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
