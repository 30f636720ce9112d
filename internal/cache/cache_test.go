package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCacheRoundTrip(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, c.Set(ctx, "k1", payload{Name: "coffee", Count: 3}))

	var got payload
	found, err := c.Get(ctx, "k1", time.Hour, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{Name: "coffee", Count: 3}, got)
}

func TestCacheMissIsNotError(t *testing.T) {
	c := openTestCache(t)

	var got string
	found, err := c.Get(context.Background(), "absent", time.Hour, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheExpiredEntryTreatedAsMiss(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v"))

	var got string
	found, err := c.Get(ctx, "k", -time.Second, &got)
	require.NoError(t, err)
	assert.False(t, found)

	// The expired row is deleted on read; even a generous TTL misses now.
	found, err = c.Get(ctx, "k", time.Hour, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheSetOverwrites(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "old"))
	require.NoError(t, c.Set(ctx, "k", "new"))

	var got string
	found, err := c.Get(ctx, "k", time.Hour, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "new", got)
}

func TestCacheDeleteAndClear(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1))
	require.NoError(t, c.Set(ctx, "b", 2))

	require.NoError(t, c.Delete(ctx, "a"))
	require.NoError(t, c.Delete(ctx, "missing"))

	var got int
	found, err := c.Get(ctx, "a", time.Hour, &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Clear(ctx))
	found, err = c.Get(ctx, "b", time.Hour, &got)
	require.NoError(t, err)
	assert.False(t, found)
}
