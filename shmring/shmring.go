// Package shmring implements the length-prefixed, cross-process SPSC byte
// ring that every shared-memory directional channel is built on (spec.md
// §3, §4.6). The span-based API — WriteAcquire/WriteCommit/ReadAcquire/
// ReadRelease distance arithmetic — is grounded on
// other_examples/24d2d8e8_jangala-dev-devicecode-go__x-shmring-shmring.go.go,
// generalized from a same-process, channel-notified byte ring into one
// laid out directly over bytes a peer process may be mapping concurrently:
// cursors live at fixed byte offsets inside the mapped region rather than
// as Go struct fields, so atomic access has to go through unsafe.Pointer
// into shared memory instead of sync/atomic.Uint64 values.
package shmring

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

const (
	headOffset          = 0
	tailOffset          = 64
	writerHeartbeatOff  = 128
	readerHeartbeatOff  = 136
	// HeaderSize is the fixed header region reserved ahead of the
	// power-of-two data region: two cache-line-isolated cursors
	// (spec.md §3's false-sharing requirement) plus two heartbeat ticks.
	HeaderSize = 192

	lengthPrefixSize = 4
)

// Ring is a single-producer/single-consumer byte ring laid out over a
// caller-owned []byte — ordinary heap memory in-process, or a
// shmmem.Map's Data when shared across processes. Capacity (len(buf) -
// HeaderSize) must be a power of two.
type Ring struct {
	buf  []byte
	data []byte
	mask uint64
}

// New wraps buf, whose length must be at least HeaderSize+2, as a shared
// ring. The caller is responsible for zeroing buf on first creation;
// New never resets cursors that may already be live from a peer.
func New(buf []byte) *Ring {
	if len(buf) <= HeaderSize {
		panic("shmring: buffer too small for header")
	}
	dataLen := len(buf) - HeaderSize
	if dataLen < 2 || dataLen&(dataLen-1) != 0 {
		panic("shmring: data region must be a power-of-two size")
	}
	return &Ring{
		buf:  buf,
		data: buf[HeaderSize:],
		mask: uint64(dataLen - 1),
	}
}

func (r *Ring) cursor(off int) *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&r.buf[off]))
}

func (r *Ring) head() uint64 { return r.cursor(headOffset).Load() }
func (r *Ring) tail() uint64 { return r.cursor(tailOffset).Load() }

func (r *Ring) size() uint64 { return uint64(len(r.data)) }

// Available reports bytes currently queued for the reader.
func (r *Ring) Available() int { return int(r.tail() - r.head()) }

// Space reports bytes currently free for the writer, honoring the
// one-byte gap invariant (spec.md §3: "used + frame ≤ capacity − 1").
func (r *Ring) Space() int { return int(r.size()-1) - r.Available() }

// Cap returns the size of the data region in bytes.
func (r *Ring) Cap() int { return len(r.data) }

func (r *Ring) writeAt(pos uint64, p []byte) {
	idx := pos & r.mask
	n := copy(r.data[idx:], p)
	if n < len(p) {
		copy(r.data, p[n:])
	}
}

func (r *Ring) readAt(pos uint64, dst []byte) {
	idx := pos & r.mask
	n := copy(dst, r.data[idx:])
	if n < len(dst) {
		copy(dst[n:], r.data)
	}
}

// TryEnqueue writes a length-prefixed frame containing payload. Returns
// false if payload exceeds the ring's usable capacity (oversize, a
// caller error) or if there is not currently enough free space
// (backpressure).
func (r *Ring) TryEnqueue(payload []byte) bool {
	need := uint64(lengthPrefixSize + len(payload))
	if len(payload) > len(r.data)-lengthPrefixSize-1 {
		return false
	}

	head := r.cursor(headOffset).Load()
	tail := r.cursor(tailOffset).Load()
	used := tail - head
	if used+need >= r.size() {
		return false
	}

	var lenBuf [lengthPrefixSize]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	r.writeAt(tail, lenBuf[:])
	r.writeAt(tail+lengthPrefixSize, payload)

	r.cursor(tailOffset).Store(tail + need) // release: payload visible before tail advances
	r.touchHeartbeat(writerHeartbeatOff)
	return true
}

// TryDequeue copies the next queued frame into dst. Returns (n, true) on
// success, (0, false) if the ring is empty, if dst is too small for the
// queued frame, or if the header looks corrupt (negative or oversize
// length — spec.md §4.6's "corrupt header" failure mode).
func (r *Ring) TryDequeue(dst []byte) (int, bool) {
	head := r.cursor(headOffset).Load()
	tail := r.cursor(tailOffset).Load() // acquire: observes writer's release
	used := tail - head
	if used == 0 {
		return 0, false
	}
	if used < lengthPrefixSize {
		return 0, false
	}

	var lenBuf [lengthPrefixSize]byte
	r.readAt(head, lenBuf[:])
	frameLen := binary.LittleEndian.Uint32(lenBuf[:])
	if frameLen > uint32(len(r.data)) || uint64(frameLen) > used-lengthPrefixSize {
		return 0, false
	}
	if int(frameLen) > len(dst) {
		return 0, false
	}

	r.readAt(head+lengthPrefixSize, dst[:frameLen])
	r.cursor(headOffset).Store(head + lengthPrefixSize + uint64(frameLen))
	r.touchHeartbeat(readerHeartbeatOff)
	return int(frameLen), true
}

func (r *Ring) touchHeartbeat(off int) {
	r.cursor(off).Add(1)
}

// WriterHeartbeat and ReaderHeartbeat expose the liveness counters each
// successful enqueue/dequeue advances. They are monotonically increasing
// tick counts, not wall-clock timestamps — timestamp-based heartbeat
// monitoring is an application-level concern layered on top, not part of
// this package.
func (r *Ring) WriterHeartbeat() uint64 { return r.cursor(writerHeartbeatOff).Load() }
func (r *Ring) ReaderHeartbeat() uint64 { return r.cursor(readerHeartbeatOff).Load() }
