package queue

import (
	"sync/atomic"

	"github.com/particlenet/particle/cursor"
)

type mpscSlot[T any] struct {
	sequence atomic.Uint64
	value    T
}

// MPSC is a bounded multi-producer/single-consumer queue (spec.md §4.4).
// Producers CAS the tail cursor, write the value, then publish by setting
// slot.sequence = pos+1; the single consumer observes slot.sequence ==
// pos+1, reads, and frees the slot by setting slot.sequence = pos+capacity.
type MPSC[T any] struct {
	mask uint64
	buf  []mpscSlot[T]

	cursors cursor.Pair // Head: consumer-owned, Tail: producer CAS target
}

// NewMPSC returns a queue whose capacity is rounded up to a power of two.
func NewMPSC[T any](capacity int) *MPSC[T] {
	if capacity < 1 {
		capacity = 1
	}
	n := 1
	for n < capacity {
		n <<= 1
	}
	q := &MPSC[T]{
		buf:  make([]mpscSlot[T], n),
		mask: uint64(n - 1),
	}
	for i := range q.buf {
		q.buf[i].sequence.Store(uint64(i))
	}
	return q
}

// Cap returns the queue's capacity.
func (q *MPSC[T]) Cap() int { return len(q.buf) }

// Push enqueues v. Safe for concurrent use by multiple producers. Returns
// false if the queue is full.
func (q *MPSC[T]) Push(v T) bool {
	pos := q.cursors.Tail.Load()
	for {
		slot := &q.buf[pos&q.mask]
		seq := slot.sequence.Load()
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if q.cursors.Tail.CompareAndSwap(pos, pos+1) {
				slot.value = v
				slot.sequence.Store(pos + 1) // publish
				return true
			}
			pos = q.cursors.Tail.Load()
		case diff < 0:
			// sequence - pos < 0: queue is full.
			return false
		default:
			pos = q.cursors.Tail.Load()
		}
	}
}

// Pop dequeues the next value. Single-consumer only. Returns false if the
// queue is empty.
func (q *MPSC[T]) Pop() (T, bool) {
	var zero T
	pos := q.cursors.Head.Load()
	slot := &q.buf[pos&q.mask]
	seq := slot.sequence.Load()
	diff := int64(seq) - int64(pos+1)
	if diff < 0 {
		// sequence - (pos+1) < 0: queue is empty.
		return zero, false
	}
	v := slot.value
	slot.value = zero
	slot.sequence.Store(pos + uint64(len(q.buf))) // free slot for next wrap
	q.cursors.Head.Store(pos + 1)
	return v, true
}
