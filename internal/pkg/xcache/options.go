package xcache

import (
	"time"

	"github.com/eko/gocache/lib/v4/store"
)

// Option configures a single Set call.
type Option = store.Option

// WithExpiration sets a per-entry TTL, overriding the store default.
func WithExpiration(expiration time.Duration) Option {
	return store.WithExpiration(expiration)
}
