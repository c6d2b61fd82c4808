// Package ipc implements the shared-memory IPC substrate: the
// directional channel, shared registry, mapped particle, and mapped
// reactor of spec.md §4.7–§4.10. It composes shmmem (mapping + mutex),
// shmring (the wire-level SPSC ring), backbuf (zero-copy callback
// buffers), and xerr/xlog/xtime for the ambient concerns.
package ipc

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/particlenet/particle/backbuf"
	"github.com/particlenet/particle/particle"
	"github.com/particlenet/particle/shmmem"
	"github.com/particlenet/particle/shmring"
	"github.com/particlenet/particle/xerr"
	"github.com/particlenet/particle/xlog"
	"github.com/particlenet/particle/xtime"
)

// Role distinguishes the two halves of a directional channel.
type Role int

const (
	RoleReader Role = iota
	RoleWriter
)

// Stats reports a channel's liveness counters and current occupancy
// (spec.md §9's heartbeat-as-metrics decision — see DESIGN.md).
type Stats struct {
	WriterHeartbeat uint64
	ReaderHeartbeat uint64
	Used            int
	Capacity        int
}

// Channel is one reader or writer half of a single named shared-memory
// mapping (spec.md §4.7). A reader owns a background drain loop; a
// writer is driven synchronously by its caller.
type Channel struct {
	mp   *shmmem.Map
	ring *shmring.Ring
	role Role
	name string
	cfg  Config
	log  *xlog.Logger

	bufs     *backbuf.Pool
	dispatch particle.Dispatcher

	running atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// Open creates or opens the named mapping and constructs a Channel over
// it in the given role. dispatch is only used by RoleReader, which
// delivers drained frames to it (and drops them if it is nil); RoleWriter
// ignores it, so it may be nil there.
func Open(ns shmmem.Namespace, name string, dataSize int, role Role, cfg Config, logger *xlog.Logger, _ *xtime.Clock, dispatch particle.Dispatcher) (*Channel, error) {
	mp, err := shmmem.CreateOrOpen(ns, name, shmring.HeaderSize+dataSize, cfg.AttachRetries, cfg.AttachRetryDelay)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindAttachRace, "ipc.Open("+name+")", err)
	}

	c := &Channel{
		mp:   mp,
		ring: shmring.New(mp.Data),
		role: role,
		name: name,
		cfg:  cfg,
		log:  xlog.Named(logger, "ipc.channel"),
		stop: make(chan struct{}),
	}

	if role == RoleReader {
		c.bufs = backbuf.New(cfg.BackBufCount, cfg.MaxPayload)
		c.dispatch = dispatch
		c.running.Store(true)
		c.wg.Add(1)
		go c.readLoop()
	} else {
		c.running.Store(true)
	}
	return c, nil
}

func spinWait(spin *uint64, max uint64) {
	for i := uint64(0); i < *spin; i++ {
		runtime.Gosched()
	}
	*spin *= 2
	if *spin > max {
		*spin = max
	}
}

// Send busy-spins try_enqueue with exponential backoff until the payload
// is queued (spec.md §4.7). Zero-length payloads are silently ignored;
// oversize payloads fail fast.
func (c *Channel) Send(payload []byte) error {
	if c.role != RoleWriter {
		return xerr.New(xerr.KindMisuse, "ipc.Channel.Send: not a writer")
	}
	if len(payload) == 0 {
		return nil
	}
	if !c.running.Load() {
		return xerr.ErrClosed
	}

	if len(payload) > c.cfg.MaxPayload {
		return xerr.ErrOversize
	}

	spin := uint64(1)
	for !c.ring.TryEnqueue(payload) {
		if !c.running.Load() {
			return xerr.ErrClosed
		}
		spinWait(&spin, c.cfg.SpinMax)
	}
	return nil
}

// SendAsync is Send honoring ctx cancellation while backing off.
func (c *Channel) SendAsync(ctx context.Context, payload []byte) error {
	if c.role != RoleWriter {
		return xerr.New(xerr.KindMisuse, "ipc.Channel.SendAsync: not a writer")
	}
	if len(payload) == 0 {
		return nil
	}
	if !c.running.Load() {
		return xerr.ErrClosed
	}

	if len(payload) > c.cfg.MaxPayload {
		return xerr.ErrOversize
	}

	spin := uint64(1)
	for !c.ring.TryEnqueue(payload) {
		if !c.running.Load() {
			return xerr.ErrClosed
		}
		select {
		case <-ctx.Done():
			return xerr.ErrCancelled
		default:
		}
		spinWait(&spin, c.cfg.SpinMax)
	}
	return nil
}

func (c *Channel) readLoop() {
	defer c.wg.Done()
	spin := uint64(1)
	batch := c.cfg.BatchSize
	if batch <= 0 {
		batch = 32
	}

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		drained := 0
		for drained < batch {
			buf := c.bufs.Next(c.cfg.MaxPayload)
			n, ok := c.ring.TryDequeue(buf)
			if !ok {
				break
			}
			if c.dispatch != nil {
				c.dispatch(particle.Event{Kind: particle.EventReceived, View: buf[:n]})
			}
			drained++
		}

		if drained == 0 {
			select {
			case <-c.stop:
				return
			default:
			}
			spinWait(&spin, c.cfg.SpinMax)
		} else {
			spin = 1
		}
	}
}

// Stats reports this channel's liveness counters and occupancy.
func (c *Channel) Stats() Stats {
	return Stats{
		WriterHeartbeat: c.ring.WriterHeartbeat(),
		ReaderHeartbeat: c.ring.ReaderHeartbeat(),
		Used:            c.ring.Available(),
		Capacity:        c.ring.Cap(),
	}
}

// Dispose stops the reader thread (if any), joins it with
// cfg.DisposeJoinTimeout, and releases the mapping. Idempotent.
func (c *Channel) Dispose() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}

	if c.role == RoleReader {
		close(c.stop)
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(c.cfg.DisposeJoinTimeout):
			c.log.Warnw("reader thread did not exit before dispose timeout", "channel", c.name)
		}
	}

	return c.mp.Close()
}
