package serv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_BasicOperations(t *testing.T) {
	ms, err := NewMemoryStore(CachingConfig{TTL: 3600}, 100)
	require.NoError(t, err)
	defer ms.Close()

	ctx := context.Background()
	value := map[string]interface{}{"name": "foobar"}

	require.NoError(t, ms.Put(ctx, "User:1:name", value, nil))

	got, found, err := ms.Get(ctx, "User:1:name")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, value, got, "memory store must return the stored value unchanged")

	snapshot := ms.Metrics().Snapshot()
	assert.Equal(t, int64(1), snapshot["hits"])
}

func TestMemoryStore_Miss(t *testing.T) {
	ms, err := NewMemoryStore(CachingConfig{TTL: 3600}, 100)
	require.NoError(t, err)
	defer ms.Close()

	_, found, err := ms.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int64(1), ms.Metrics().Snapshot()["misses"])
}

func TestMemoryStore_NoTTLMeansNoExpiry(t *testing.T) {
	ms, err := NewMemoryStore(CachingConfig{}, 100)
	require.NoError(t, err)
	defer ms.Close()

	ctx := context.Background()
	require.NoError(t, ms.Put(ctx, "k", "v", nil))

	_, found, err := ms.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryStore_GetTagged(t *testing.T) {
	ms, err := NewMemoryStore(CachingConfig{TTL: 3600, TaggingEnabled: true}, 100)
	require.NoError(t, err)
	defer ms.Close()

	ctx := context.Background()
	tags := []string{"User:1", "User:1:posts"}
	require.NoError(t, ms.Put(ctx, "User:1:posts", []interface{}{"a"}, tags))

	// Entry carries the requested tags
	_, found, err := ms.GetTagged(ctx, tags, "User:1:posts")
	require.NoError(t, err)
	assert.True(t, found)

	// A tag the entry was not stored under reads as absent
	_, found, err = ms.GetTagged(ctx, []string{"User:2"}, "User:1:posts")
	require.NoError(t, err)
	assert.False(t, found, "tag-scoped reads must not leak differently-tagged entries")
}

func TestMemoryStore_InvalidateTags(t *testing.T) {
	ms, err := NewMemoryStore(CachingConfig{TTL: 3600, TaggingEnabled: true}, 100)
	require.NoError(t, err)
	defer ms.Close()

	ctx := context.Background()
	require.NoError(t, ms.Put(ctx, "User:1:name", "foobar", []string{"User:1", "User:1:name"}))
	require.NoError(t, ms.Put(ctx, "User:1:posts", []interface{}{"p"}, []string{"User:1", "User:1:posts"}))
	require.NoError(t, ms.Put(ctx, "User:2:name", "other", []string{"User:2", "User:2:name"}))

	// Invalidating the entity tag drops every cached field of that entity
	require.NoError(t, ms.InvalidateTags(ctx, []string{"User:1"}))

	_, found, _ := ms.Get(ctx, "User:1:name")
	assert.False(t, found)
	_, found, _ = ms.Get(ctx, "User:1:posts")
	assert.False(t, found)

	// Other entities are untouched
	_, found, _ = ms.Get(ctx, "User:2:name")
	assert.True(t, found)

	assert.Equal(t, int64(2), ms.Metrics().Snapshot()["invalidations"])
}

func TestMemoryStore_InvalidateFieldTag(t *testing.T) {
	ms, err := NewMemoryStore(CachingConfig{TTL: 3600, TaggingEnabled: true}, 100)
	require.NoError(t, err)
	defer ms.Close()

	ctx := context.Background()
	require.NoError(t, ms.Put(ctx, "User:1:name", "foobar", []string{"User:1", "User:1:name"}))
	require.NoError(t, ms.Put(ctx, "User:1:posts", []interface{}{"p"}, []string{"User:1", "User:1:posts"}))

	// The field-level tag drops only that field's entry
	require.NoError(t, ms.InvalidateTags(ctx, []string{"User:1:name"}))

	_, found, _ := ms.Get(ctx, "User:1:name")
	assert.False(t, found)
	_, found, _ = ms.Get(ctx, "User:1:posts")
	assert.True(t, found)
}

func TestMemoryStore_ExcludeTypes(t *testing.T) {
	conf := CachingConfig{TTL: 3600, TaggingEnabled: true, ExcludeTypes: []string{"Session"}}
	ms, err := NewMemoryStore(conf, 100)
	require.NoError(t, err)
	defer ms.Close()

	ctx := context.Background()
	require.NoError(t, ms.Put(ctx, "Session:9:data", "v", []string{"Session:9", "Session:9:data"}))

	// Excluded types are never indexed, so tag invalidation cannot reach them
	require.NoError(t, ms.InvalidateTags(ctx, []string{"Session:9"}))
	_, found, _ := ms.Get(ctx, "Session:9:data")
	assert.True(t, found)
}

func TestMemoryStore_LRUEviction(t *testing.T) {
	ms, err := NewMemoryStore(CachingConfig{TTL: 3600}, 2)
	require.NoError(t, err)
	defer ms.Close()

	ctx := context.Background()
	require.NoError(t, ms.Put(ctx, "a", 1, nil))
	require.NoError(t, ms.Put(ctx, "b", 2, nil))
	require.NoError(t, ms.Put(ctx, "c", 3, nil))

	_, found, _ := ms.Get(ctx, "a")
	assert.False(t, found, "oldest entry should have been evicted")
	_, found, _ = ms.Get(ctx, "c")
	assert.True(t, found)
}

func TestMemoryStore_HitRate(t *testing.T) {
	ms, err := NewMemoryStore(CachingConfig{TTL: 3600}, 100)
	require.NoError(t, err)
	defer ms.Close()

	ctx := context.Background()
	require.NoError(t, ms.Put(ctx, "k", "v", nil))

	ms.Get(ctx, "k")      // hit
	ms.Get(ctx, "absent") // miss

	assert.InDelta(t, 0.5, ms.Metrics().HitRate(), 0.001)
}
