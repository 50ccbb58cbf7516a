// Package kv provides a small concurrency-safe map.
package kv

import "sync"

// Map is a map guarded by a RWMutex. The zero value is not usable; call New.
type Map[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{m: make(map[K]V)}
}

func (s *Map[K, V]) Load(key K) (V, bool) {
	s.mu.RLock()
	v, ok := s.m[key]
	s.mu.RUnlock()
	return v, ok
}

func (s *Map[K, V]) Store(key K, v V) {
	s.mu.Lock()
	s.m[key] = v
	s.mu.Unlock()
}

// StoreNew stores v only if key is unused and reports whether it did.
func (s *Map[K, V]) StoreNew(key K, v V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.m[key]; taken {
		return false
	}
	s.m[key] = v
	return true
}

// LoadAndDelete removes key and returns what it held.
func (s *Map[K, V]) LoadAndDelete(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if ok {
		delete(s.m, key)
	}
	return v, ok
}

// Find returns the first value, in no particular order, for which match
// reports true.
func (s *Map[K, V]) Find(match func(V) bool) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.m {
		if match(v) {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// Values returns a snapshot of the values in no particular order.
func (s *Map[K, V]) Values() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]V, 0, len(s.m))
	for _, v := range s.m {
		out = append(out, v)
	}
	return out
}

func (s *Map[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
