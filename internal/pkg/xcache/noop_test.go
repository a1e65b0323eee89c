package xcache

import (
	"testing"

	"github.com/eko/gocache/lib/v4/store"
	"github.com/stretchr/testify/require"
)

func TestNoopCache(t *testing.T) {
	cache := NewNoop[string]()
	ctx := t.Context()

	t.Run("get reports not found", func(t *testing.T) {
		_, err := cache.Get(ctx, "any")
		require.Error(t, err)

		var notFound *store.NotFound
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("set is a no-op", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "key", "value"))

		_, err := cache.Get(ctx, "key")
		require.Error(t, err)
	})

	t.Run("delete and clear are no-ops", func(t *testing.T) {
		require.NoError(t, cache.Delete(ctx, "key"))
		require.NoError(t, cache.Clear(ctx))
		require.NoError(t, cache.Invalidate(ctx))
	})

	t.Run("type is noop", func(t *testing.T) {
		require.Equal(t, "noop", cache.GetType())
	})
}
