// Package queue implements the bounded lock-free SPSC, MPSC, and MPMC
// queues of spec.md §4.3–§4.5: array-backed, power-of-two capacity,
// per-slot sequence numbers where multiple producers or consumers are
// involved. Grounded on the wr/rd atomic-index span ring in
// other_examples/24d2d8e8_jangala-dev-devicecode-go__x-shmring-shmring.go
// (SPSC) and the FAA/cycle-tagged slot scheme in
// other_examples/59002c72_hayabusa-cloud-lfq__mpsc_128.go (MPSC), reduced
// to the single `sequence` counter per slot that spec.md §4.4 describes.
package queue

import "github.com/particlenet/particle/cursor"

// SPSC is a bounded single-producer/single-consumer ring of typed values.
// Exactly one goroutine may call Push; exactly one goroutine may call Pop.
type SPSC[T any] struct {
	mask uint64
	buf  []T

	cursors cursor.Pair // Head: consumer-owned, Tail: producer-owned
}

// NewSPSC returns a ring whose capacity is rounded up to a power of two.
func NewSPSC[T any](capacity int) *SPSC[T] {
	if capacity < 1 {
		capacity = 1
	}
	n := 1
	for n < capacity {
		n <<= 1
	}
	return &SPSC[T]{
		buf:  make([]T, n),
		mask: uint64(n - 1),
	}
}

// Cap returns the ring's capacity.
func (q *SPSC[T]) Cap() int { return len(q.buf) }

// Push writes a value. Returns false if the ring is full.
func (q *SPSC[T]) Push(v T) bool {
	tail := q.cursors.Tail.Load()
	head := q.cursors.Head.Load()
	if tail-head >= uint64(len(q.buf)) {
		return false
	}
	q.buf[tail&q.mask] = v
	q.cursors.Tail.Store(tail + 1) // publish: release
	return true
}

// Pop reads the next value. Returns false if the ring is empty.
func (q *SPSC[T]) Pop() (T, bool) {
	var zero T
	head := q.cursors.Head.Load()
	tail := q.cursors.Tail.Load() // acquire
	if head == tail {
		return zero, false
	}
	v := q.buf[head&q.mask]
	q.buf[head&q.mask] = zero      // drop reference so GC can reclaim it
	q.cursors.Head.Store(head + 1) // publish: release
	return v, true
}

// Len returns a snapshot of the number of queued items.
func (q *SPSC[T]) Len() int {
	return int(q.cursors.Tail.Load() - q.cursors.Head.Load())
}
