package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTTLBoundary(t *testing.T) {
	ttl := 10 * time.Second
	c := NewMemory(ttl, 10)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "<html>cached</html>"))

	now = base.Add(ttl - time.Millisecond)
	html, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "<html>cached</html>", html)

	now = base.Add(ttl + time.Millisecond)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemory(time.Hour, 2)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", "A"))
	now = now.Add(time.Second)
	require.NoError(t, c.Set(ctx, "b", "B"))

	// touch "a" so "b" becomes the LRU entry
	now = now.Add(time.Second)
	_, ok, _ := c.Get(ctx, "a")
	require.True(t, ok)

	now = now.Add(time.Second)
	require.NoError(t, c.Set(ctx, "c", "C"))

	_, ok, _ = c.Get(ctx, "a")
	assert.True(t, ok, "recently used entry survives")
	_, ok, _ = c.Get(ctx, "b")
	assert.False(t, ok, "least recently used entry evicted")
	_, ok, _ = c.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestMemoryOverwriteDoesNotEvict(t *testing.T) {
	c := NewMemory(time.Hour, 2)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", "A"))
	require.NoError(t, c.Set(ctx, "b", "B"))
	require.NoError(t, c.Set(ctx, "a", "A2"))

	html, ok, _ := c.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, "A2", html)
	_, ok, _ = c.Get(ctx, "b")
	assert.True(t, ok)
}
