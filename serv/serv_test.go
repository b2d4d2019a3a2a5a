package serv

import (
	"context"
	"testing"

	"github.com/corvid-labs/fieldcache/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewInterceptor_Wiring(t *testing.T) {
	path := writeConfig(t, "caching:\n  ttl: 60\n  tagging_enabled: true\n")
	c, err := ReadInConfig(path)
	require.NoError(t, err)

	schema := core.NewSchema()
	schema.AddType(core.TypeConfig{Name: "User", Identity: "id"})

	ic, store, err := NewInterceptor(c, schema, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	ref, err := core.NewEntityRef("User", 1)
	require.NoError(t, err)

	calls := 0
	resolver := func(ctx context.Context, fc *core.FieldContext) (interface{}, error) {
		calls++
		return "foobar", nil
	}
	fc := &core.FieldContext{Parent: ref, Field: "name", Cacheable: true}

	v, err := ic.Resolve(context.Background(), fc, resolver)
	require.NoError(t, err)
	assert.Equal(t, "foobar", v)

	// Second request is served from the memory backend
	v, err = ic.Resolve(context.Background(), fc, resolver)
	require.NoError(t, err)
	assert.Equal(t, "foobar", v)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), store.Metrics().Snapshot()["hits"])

	// Mutation-side invalidation through the entity tag
	require.NoError(t, store.InvalidateTags(context.Background(), []string{"User:1"}))

	_, err = ic.Resolve(context.Background(), fc, resolver)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "invalidated entry must resolve again")
}
