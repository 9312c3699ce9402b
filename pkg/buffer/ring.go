// Package buffer provides a generic, thread-safe ring buffer that keeps
// the most recent items up to a fixed capacity. When full, a write
// overwrites the oldest item.
package buffer

import (
	"sync"
	"sync/atomic"

	"github.com/nasa/GMSEC-API-sub012/errors"
)

// Statistics counts ring activity
type Statistics struct {
	writes      atomic.Int64
	overwritten atomic.Int64
}

// Writes returns the number of items written
func (s *Statistics) Writes() int64 { return s.writes.Load() }

// Overwritten returns the number of items lost to overflow
func (s *Statistics) Overwritten() int64 { return s.overwritten.Load() }

// Ring holds the last Capacity items written. Storage grows with use up
// to the capacity, so large windows that are never filled stay small.
type Ring[T any] struct {
	mu       sync.Mutex
	items    []T
	head     int
	capacity int
	stats    Statistics
}

// NewRing creates a ring holding at most capacity items
func NewRing[T any](capacity int) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfigValue, "buffer", "NewRing", "capacity must be positive")
	}
	return &Ring[T]{capacity: capacity}, nil
}

// Write appends item, overwriting the oldest when full. It reports
// whether an item was overwritten.
func (r *Ring[T]) Write(item T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.writes.Add(1)
	if len(r.items) < r.capacity {
		r.items = append(r.items, item)
		return false
	}
	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
	r.stats.overwritten.Add(1)
	return true
}

// Items returns the held items, oldest first
func (r *Ring[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, 0, len(r.items))
	out = append(out, r.items[r.head:]...)
	return append(out, r.items[:r.head]...)
}

// Latest returns the newest item
func (r *Ring[T]) Latest() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.items) == 0 {
		var zero T
		return zero, false
	}
	return r.items[(r.head+len(r.items)-1)%len(r.items)], true
}

// Len returns the number of held items
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Capacity returns the maximum number of held items
func (r *Ring[T]) Capacity() int { return r.capacity }

// Clear drops all items. Statistics are kept.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
	r.head = 0
}

// Stats returns the live statistics
func (r *Ring[T]) Stats() *Statistics { return &r.stats }
