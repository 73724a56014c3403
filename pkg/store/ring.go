// Package store holds the bounded in-memory event log: one fixed-capacity
// ring per event type, owned by a single mutex-guarded Store.
package store

// Ring is a fixed-capacity insertion-ordered buffer with oldest-out
// eviction. Append is O(1); Items is O(n). The ring itself is not
// synchronized — it is always accessed under its owning Store's lock.
type Ring[T any] struct {
	buf  []T
	head int // index of the oldest item
	size int
}

// NewRing creates a ring with the given capacity. Capacity must be > 0.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("store: ring capacity must be > 0")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Append inserts an item, evicting the oldest when full. Returns the
// evicted item, if any.
func (r *Ring[T]) Append(item T) (evicted T, wasEvicted bool) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = item
		r.size++
		return evicted, false
	}
	evicted = r.buf[r.head]
	r.buf[r.head] = item
	r.head = (r.head + 1) % len(r.buf)
	return evicted, true
}

// Items returns the retained items in insertion order (oldest first).
// The returned slice is freshly allocated.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Len returns the number of retained items.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Reset discards all retained items.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.size = 0
}
