package queue

import (
	"sync/atomic"

	"github.com/particlenet/particle/cursor"
)

type mpmcSlot[T any] struct {
	sequence atomic.Uint64
	value    T
}

// MPMC is a bounded multi-producer/multi-consumer queue (spec.md §4.5):
// the same sequence-number scheme as MPSC, but the consumer side also CASes its
// cursor since more than one goroutine may Pop concurrently.
type MPMC[T any] struct {
	mask uint64
	buf  []mpmcSlot[T]

	cursors cursor.Pair
}

// NewMPMC returns a queue whose capacity is rounded up to a power of two.
func NewMPMC[T any](capacity int) *MPMC[T] {
	if capacity < 1 {
		capacity = 1
	}
	n := 1
	for n < capacity {
		n <<= 1
	}
	q := &MPMC[T]{
		buf:  make([]mpmcSlot[T], n),
		mask: uint64(n - 1),
	}
	for i := range q.buf {
		q.buf[i].sequence.Store(uint64(i))
	}
	return q
}

// Cap returns the queue's capacity.
func (q *MPMC[T]) Cap() int { return len(q.buf) }

// Push enqueues v. Returns false if the queue is full.
func (q *MPMC[T]) Push(v T) bool {
	pos := q.cursors.Tail.Load()
	for {
		slot := &q.buf[pos&q.mask]
		seq := slot.sequence.Load()
		diff := int64(seq) - int64(pos)
		if diff == 0 {
			if q.cursors.Tail.CompareAndSwap(pos, pos+1) {
				slot.value = v
				slot.sequence.Store(pos + 1)
				return true
			}
			pos = q.cursors.Tail.Load()
		} else if diff < 0 {
			return false
		} else {
			pos = q.cursors.Tail.Load()
		}
	}
}

// Pop dequeues a value. Safe for concurrent use by multiple consumers.
// Returns false if the queue is empty.
func (q *MPMC[T]) Pop() (T, bool) {
	var zero T
	pos := q.cursors.Head.Load()
	for {
		slot := &q.buf[pos&q.mask]
		seq := slot.sequence.Load()
		diff := int64(seq) - int64(pos+1)
		if diff == 0 {
			if q.cursors.Head.CompareAndSwap(pos, pos+1) {
				v := slot.value
				slot.value = zero
				slot.sequence.Store(pos + uint64(len(q.buf)))
				return v, true
			}
			pos = q.cursors.Head.Load()
		} else if diff < 0 {
			return zero, false
		} else {
			pos = q.cursors.Head.Load()
		}
	}
}
