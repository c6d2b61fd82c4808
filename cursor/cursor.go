// Package cursor implements the cache-line-padded monotonic counter used
// by every ring and queue in this module (spec.md §4.1): two cursors laid
// out back to back must never share a cache line, and publication must
// use release/acquire ordering, never relaxed, even though Go's
// sync/atomic package does not expose ordering modes explicitly (the
// runtime's atomic instructions on every supported arch are already
// sequentially consistent, which is a stronger guarantee than the
// release/acquire the spec requires).
package cursor

import "sync/atomic"

// cacheLineSize is the padding unit used throughout this module, matching
// the cache-line padding pattern around head/tail counters seen in
// lock-free SPSC/MPSC implementations in the reference corpus.
const cacheLineSize = 64

// Cursor is a 64-bit monotonic counter padded to its own cache line.
type Cursor struct {
	v    atomic.Uint64
	_pad [cacheLineSize - 8]byte
}

// Load returns the current value (acquire semantics).
func (c *Cursor) Load() uint64 { return c.v.Load() }

// Store publishes a new value (release semantics).
func (c *Cursor) Store(val uint64) { c.v.Store(val) }

// Add atomically adds delta and returns the new value.
func (c *Cursor) Add(delta uint64) uint64 { return c.v.Add(delta) }

// CompareAndSwap attempts old -> new, reporting success. Used by
// multi-producer cursors (spec.md §4.1 "for multi-producer use").
func (c *Cursor) CompareAndSwap(old, new uint64) bool {
	return c.v.CompareAndSwap(old, new)
}

// Pair is two cursors (e.g. head/tail) guaranteed not to share a cache
// line with each other, matching the ring header layout of spec.md §3
// ("Two cursors per ring, each isolated on its own cache line").
type Pair struct {
	Head Cursor
	Tail Cursor
}
