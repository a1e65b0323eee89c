// Package xmap wraps sync.Map with type parameters.
package xmap

import (
	"sync"
)

// Map is a typed view over sync.Map. The zero value is not usable, construct
// it with New.
type Map[K comparable, V any] struct {
	m sync.Map
}

func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{}
}

// Load returns the value stored for key. ok is false when the key is absent.
func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	v, ok := m.m.Load(key)
	if !ok {
		return value, false
	}

	//nolint:forcetypeassert // Only values of type V are stored.
	return v.(V), true
}

// Store sets the value for key.
func (m *Map[K, V]) Store(key K, value V) {
	m.m.Store(key, value)
}

// LoadOrStore returns the existing value for key if present, otherwise it
// stores and returns value. loaded is true when the value was already there.
func (m *Map[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	v, loaded := m.m.LoadOrStore(key, value)
	//nolint:forcetypeassert // Only values of type V are stored.
	return v.(V), loaded
}

// Range calls f for each entry until f returns false. Like sync.Map, it does
// not represent a consistent snapshot.
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	m.m.Range(func(key, value any) bool {
		//nolint:forcetypeassert // Only values of type V are stored.
		return f(key.(K), value.(V))
	})
}
