package redis

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	lib_store "github.com/eko/gocache/lib/v4/store"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type testStruct struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func newTestStore[T any](t *testing.T, options ...lib_store.Option) *RedisStore[T] {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore[T](client, options...)
}

func TestRedisStore_SetAndGetStruct(t *testing.T) {
	store := newTestStore[testStruct](t)
	ctx := t.Context()

	err := store.Set(ctx, "my-key", testStruct{Name: "test", Value: 123})
	require.NoError(t, err)

	value, err := store.Get(ctx, "my-key")
	require.NoError(t, err)

	tv, ok := value.(testStruct)
	require.True(t, ok)
	require.Equal(t, "test", tv.Name)
	require.Equal(t, 123, tv.Value)
}

func TestRedisStore_GetMissing(t *testing.T) {
	store := newTestStore[string](t)

	_, err := store.Get(t.Context(), "absent")
	require.Error(t, err)

	var notFound *lib_store.NotFound
	require.ErrorAs(t, err, &notFound)
}

func TestRedisStore_GetWithTTL(t *testing.T) {
	store := newTestStore[string](t, lib_store.WithExpiration(time.Minute))
	ctx := t.Context()

	require.NoError(t, store.Set(ctx, "key", "value"))

	got, ttl, err := store.GetWithTTL(ctx, "key")
	require.NoError(t, err)
	require.Equal(t, "value", got)
	require.Greater(t, ttl, time.Duration(0))
}

func TestRedisStore_Delete(t *testing.T) {
	store := newTestStore[string](t)
	ctx := t.Context()

	require.NoError(t, store.Set(ctx, "key", "value"))
	require.NoError(t, store.Delete(ctx, "key"))

	_, err := store.Get(ctx, "key")
	require.Error(t, err)
}

func TestRedisStore_NonStringKey(t *testing.T) {
	store := newTestStore[string](t)

	_, err := store.Get(t.Context(), 42)
	require.Error(t, err)

	err = store.Set(t.Context(), 42, "value")
	require.ErrorContains(t, err, "expected string key")
}
