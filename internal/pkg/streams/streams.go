// Package streams provides a minimal pull-based stream abstraction used for
// incremental responses from generation backends.
package streams

// Stream is a pull-based sequence of values.
//
// The usage pattern mirrors database/sql.Rows: call Next until it returns
// false, read the value with Current, then check Err to distinguish
// exhaustion from failure. Implementations are not safe for concurrent use.
type Stream[T any] interface {
	// Next advances to the next element, returning false when the stream is
	// exhausted or failed.
	Next() bool

	// Current returns the element positioned by the last Next call.
	Current() T

	// Err returns the first error encountered, if any.
	Err() error

	// Close releases underlying resources. It is safe to call multiple times.
	Close() error
}

// SliceStream adapts a slice to the Stream interface.
func SliceStream[T any](items []T) Stream[T] {
	return &sliceStream[T]{items: items}
}

type sliceStream[T any] struct {
	items []T
	index int
}

func (s *sliceStream[T]) Next() bool {
	if s.index < len(s.items) {
		s.index++
		return true
	}

	return false
}

func (s *sliceStream[T]) Current() T {
	if s.index > 0 && s.index <= len(s.items) {
		return s.items[s.index-1]
	}

	var zero T

	return zero
}

func (s *sliceStream[T]) Err() error { return nil }

func (s *sliceStream[T]) Close() error { return nil }

// All drains the stream into a slice and reports the terminal error. It does
// not close the stream.
func All[T any](stream Stream[T]) ([]T, error) {
	var result []T

	for stream.Next() {
		result = append(result, stream.Current())
	}

	return result, stream.Err()
}
