package xcache

import (
	"context"
	"errors"

	"github.com/eko/gocache/lib/v4/store"
)

// ErrCacheNotConfigured reports a read from the noop cache.
var ErrCacheNotConfigured = errors.New("cache not configured")

// NewNoop returns a cache that stores nothing. It stands in when caching is
// not configured so callers never need a nil check.
func NewNoop[T any]() Cache[T] {
	return &noopCache[T]{}
}

type noopCache[T any] struct{}

// Get reports a miss for every key.
func (n *noopCache[T]) Get(ctx context.Context, key any) (T, error) {
	var zero T
	return zero, store.NotFoundWithCause(ErrCacheNotConfigured)
}

func (n *noopCache[T]) Set(ctx context.Context, key any, object T, options ...Option) error {
	return nil
}

func (n *noopCache[T]) Delete(ctx context.Context, key any) error {
	return nil
}

func (n *noopCache[T]) Invalidate(ctx context.Context, options ...store.InvalidateOption) error {
	return nil
}

func (n *noopCache[T]) Clear(ctx context.Context) error {
	return nil
}

func (n *noopCache[T]) GetType() string {
	return "noop"
}
