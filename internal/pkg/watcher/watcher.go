// Package watcher delivers lightweight fan-out signals between goroutines
// and, in redis mode, between instances. Delivery is best-effort: a slow
// subscriber loses signals instead of blocking the publisher. That is the
// right trade for refresh triggers, which are idempotent.
package watcher

import "context"

// Watcher is the subscribe side of a signal stream.
type Watcher[T any] interface {
	// Watch subscribes and returns the event channel together with a stop
	// function. Stop must be called exactly once; it releases the
	// subscription and closes the channel.
	Watch() (<-chan T, func())
}

// Notifier extends Watcher with the publish side.
type Notifier[T any] interface {
	Watcher[T]

	// Notify broadcasts v to every current subscriber.
	Notify(ctx context.Context, v T) error
}
