// Package backbuf implements the rotating back-buffer pool an IPC
// directional channel reader uses to deliver zero-copy views that remain
// valid for the duration of one callback (spec.md §4.7, §8's "B-1"
// invariant). Built on the teacher's container/ring.Ring[V] as fixed
// storage for the buffers; Pool rotates through them itself, fetching
// Get(idx) and advancing idx modulo the ring's length.
package backbuf

import "github.com/particlenet/particle/container/ring"

// Pool rotates through a fixed set of owned byte buffers, each sized to
// the maximum payload. A reader thread calls Next for every dispatched
// frame; the caller must copy out of the returned buffer before Next is
// called again more than pool_size-1 times (spec.md §8).
type Pool struct {
	r   *ring.Ring[[]byte]
	idx int
}

// New allocates count buffers of bufSize bytes each (spec.md default:
// count=8, minimum 2).
func New(count, bufSize int) *Pool {
	if count < 2 {
		count = 2
	}
	bufs := make([][]byte, count)
	for i := range bufs {
		bufs[i] = make([]byte, bufSize)
	}
	return &Pool{r: ring.NewFromSlice(bufs)}
}

// Size returns the number of buffers in the pool.
func (p *Pool) Size() int { return p.r.Len() }

// BufSize returns the capacity of each buffer.
func (p *Pool) BufSize() int {
	if it := p.r.Head(); it != nil {
		return len(it.Value())
	}
	return 0
}

// Next rotates to the next buffer and returns it, truncated to n bytes.
// The returned slice is only valid until the caller's callback returns.
func (p *Pool) Next(n int) []byte {
	it, ok := p.r.Get(p.idx)
	if !ok {
		return nil
	}
	p.idx = (p.idx + 1) % p.r.Len()
	buf := *it.Pointer()
	if n > len(buf) {
		n = len(buf)
	}
	return buf[:n]
}
