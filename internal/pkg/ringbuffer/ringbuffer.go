// Package ringbuffer provides a fixed-capacity ring that retains the newest
// entries in insertion order.
package ringbuffer

import (
	"sync"
)

// RingBuffer is a concurrency-safe bounded buffer. Once full, every push
// evicts the oldest entry.
type RingBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int // index of the oldest entry
}

// New creates a ring holding at most capacity entries.
func New[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 1
	}

	return &RingBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends an entry, evicting the oldest one when the ring is full.
func (rb *RingBuffer[T]) Push(value T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	tail := (rb.head + rb.size) % rb.capacity
	rb.items[tail] = value

	if rb.size < rb.capacity {
		rb.size++
		return
	}

	rb.head = (rb.head + 1) % rb.capacity
}

// Len returns the number of retained entries.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	return rb.size
}

// Capacity returns the maximum number of retained entries.
func (rb *RingBuffer[T]) Capacity() int {
	return rb.capacity
}

// Snapshot returns the retained entries, oldest first.
func (rb *RingBuffer[T]) Snapshot() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.size == 0 {
		return nil
	}

	result := make([]T, 0, rb.size)
	for i := range rb.size {
		result = append(result, rb.items[(rb.head+i)%rb.capacity])
	}

	return result
}
