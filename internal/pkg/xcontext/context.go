// Package xcontext carries context helpers shared across packages.
package xcontext

import (
	"context"
	"time"
)

// DetachWithTimeout derives a context that survives cancellation of ctx but
// still expires after timeout. Values of ctx are kept. Lets a finished task
// deliver its result even when the dialogue that started it is already gone.
func DetachWithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	return context.WithTimeout(detached, timeout)
}
