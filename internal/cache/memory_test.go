package cache_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luuchoh/SpotifyScope/internal/cache"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestMemoryStoreSetGet(t *testing.T) {
	store := cache.NewMemoryStore(testLogger())
	defer store.Close()
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	ok := store.Set(ctx, "test:key", payload{Name: "rock", Count: 42}, time.Minute)
	require.True(t, ok)

	var got payload
	require.True(t, store.Get(ctx, "test:key", &got))
	assert.Equal(t, "rock", got.Name)
	assert.Equal(t, 42, got.Count)
}

func TestMemoryStoreGetMissingKey(t *testing.T) {
	store := cache.NewMemoryStore(testLogger())
	defer store.Close()

	var got string
	assert.False(t, store.Get(context.Background(), "missing", &got))
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := cache.NewMemoryStore(testLogger())
	defer store.Close()
	ctx := context.Background()

	require.True(t, store.Set(ctx, "short", "value", 10*time.Millisecond))
	require.True(t, store.Exists(ctx, "short"))

	time.Sleep(25 * time.Millisecond)

	var got string
	assert.False(t, store.Get(ctx, "short", &got))
	assert.False(t, store.Exists(ctx, "short"))
}

func TestMemoryStoreDelete(t *testing.T) {
	store := cache.NewMemoryStore(testLogger())
	defer store.Close()
	ctx := context.Background()

	require.True(t, store.Set(ctx, "doomed", 1, time.Minute))
	require.True(t, store.Delete(ctx, "doomed"))
	assert.False(t, store.Exists(ctx, "doomed"))

	// Deleting a missing key is still a success.
	assert.True(t, store.Delete(ctx, "doomed"))
}

func TestMemoryStoreInvalidatePattern(t *testing.T) {
	store := cache.NewMemoryStore(testLogger())
	defer store.Close()
	ctx := context.Background()

	keys := []string{
		"analytics:user-1:full-analytics:short_term",
		"analytics:user-1:top-tracks:all",
		"analytics:user-2:full-analytics:all",
		"session:user-1",
	}
	for _, key := range keys {
		require.True(t, store.Set(ctx, key, "data", time.Minute))
	}

	require.True(t, store.Invalidate(ctx, "analytics:user-1:*"))

	assert.False(t, store.Exists(ctx, "analytics:user-1:full-analytics:short_term"))
	assert.False(t, store.Exists(ctx, "analytics:user-1:top-tracks:all"))
	assert.True(t, store.Exists(ctx, "analytics:user-2:full-analytics:all"))
	assert.True(t, store.Exists(ctx, "session:user-1"))
}

func TestMemoryStoreNoTTL(t *testing.T) {
	store := cache.NewMemoryStore(testLogger())
	defer store.Close()
	ctx := context.Background()

	require.True(t, store.Set(ctx, "forever", "value", 0))
	assert.True(t, store.Exists(ctx, "forever"))
}

func TestMemoryStorePing(t *testing.T) {
	store := cache.NewMemoryStore(testLogger())
	defer store.Close()

	assert.NoError(t, store.Ping(context.Background()))
	assert.True(t, store.IsAvailable())
}

func TestDisabledStoreAlwaysMisses(t *testing.T) {
	store := cache.NewDisabled()
	ctx := context.Background()

	assert.False(t, store.Set(ctx, "key", "value", time.Minute))

	var got string
	assert.False(t, store.Get(ctx, "key", &got))
	assert.False(t, store.Exists(ctx, "key"))
	assert.False(t, store.IsAvailable())
}
