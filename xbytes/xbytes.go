// Package xbytes recycles byte buffers through the teacher's
// cache/mempool instead of sync.Pool directly. The in-process particle's
// send buffers and the TCP particle's copy-on-dispatch buffers go through
// here, so those transient allocations use the same size-classed,
// footer-tagged pool the teacher already ships.
package xbytes

import "github.com/particlenet/particle/cache/mempool"

// Get returns a recycled buffer of exactly size bytes (content
// unspecified — callers must overwrite before reading). Put it back with
// Put when done; never read or write it afterward.
func Get(size int) []byte {
	return mempool.Malloc(size)
}

// Put returns buf to the pool it came from. buf must have been obtained
// from Get and not already returned.
func Put(buf []byte) {
	mempool.Free(buf)
}
