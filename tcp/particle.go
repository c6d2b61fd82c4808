// Package tcp implements the framed TCP transport: a particle that
// reads and writes length-prefixed frames through the teacher's
// bufiox.Reader/Writer (spec.md §4.12), and a reactor running an accept
// loop over it (spec.md §4.13). Receive uses goroutine-per-connection
// reads against Go's net.Conn rather than raw io_uring completions — the
// runtime netpoller already parks blocked readers instead of spinning a
// thread, which is this module's equivalent of the source's async
// socket completion model.
package tcp

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/particlenet/particle/bufiox"
	"github.com/particlenet/particle/connstate"
	"github.com/particlenet/particle/frame"
	"github.com/particlenet/particle/netx"
	"github.com/particlenet/particle/particle"
	"github.com/particlenet/particle/xbytes"
	"github.com/particlenet/particle/xerr"
	"github.com/particlenet/particle/xlog"
	"github.com/particlenet/particle/xtime"
)

// Particle is a duplex TCP endpoint: a framed receive loop plus a framed
// send path, both driven through a single netx.Conn's bufiox
// reader/writer.
type Particle struct {
	id   string
	conn netx.Conn
	cfg  Config

	dispatch particle.Dispatcher
	log      *xlog.Logger
	clock    *xtime.Clock

	sendMu sync.Mutex // serializes Writer().Malloc/WriteBinary/Flush

	closed atomic.Bool
	wg     sync.WaitGroup
}

// newParticle is the single constructor both the dial path and the
// accept path call, so accepted and dialed connections are never
// configured differently (spec.md §9).
func newParticle(conn net.Conn, id string, cfg Config, logger *xlog.Logger, clock *xtime.Clock, dispatch particle.Dispatcher) (*Particle, error) {
	if tc, ok := conn.(*net.TCPConn); ok {
		if cfg.NoDelay {
			_ = tc.SetNoDelay(true)
		}
		if cfg.ReadBufferSize > 0 {
			_ = tc.SetReadBuffer(cfg.ReadBufferSize)
		}
		if cfg.WriteBufferSize > 0 {
			_ = tc.SetWriteBuffer(cfg.WriteBufferSize)
		}
	}

	nc, err := netx.Wrap(conn, logger)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindMisuse, "tcp.newParticle", err)
	}

	if id == "" {
		id = conn.RemoteAddr().String()
	}

	p := &Particle{
		id:       id,
		conn:     nc,
		cfg:      cfg,
		dispatch: dispatch,
		log:      xlog.Named(logger, "tcp.particle."+id),
		clock:    clock,
	}

	p.wg.Add(1)
	go p.readLoop()
	return p, nil
}

// Dial connects to addr and wraps the resulting connection as a client
// particle.
func Dial(ctx context.Context, addr string, cfg Config, logger *xlog.Logger, clock *xtime.Clock, dispatch particle.Dispatcher) (*Particle, error) {
	d := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindPeerGone, "tcp.Dial", err)
	}
	return newParticle(conn, "", cfg, logger, clock, dispatch)
}

// DialWithRetry retries Dial up to cfg.ReconnectMaxAttempts times with a
// fixed backoff, honoring ctx cancellation (spec.md §8 scenario 6,
// "Reconnect" — supplemented beyond the distilled core, see DESIGN.md).
func DialWithRetry(ctx context.Context, addr string, cfg Config, logger *xlog.Logger, clock *xtime.Clock, dispatch particle.Dispatcher) (*Particle, error) {
	attempts := cfg.ReconnectMaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		p, err := Dial(ctx, addr, cfg, logger, clock, dispatch)
		if err == nil {
			return p, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, xerr.ErrCancelled
		case <-time.After(cfg.ReconnectBackoff):
		}
	}
	return nil, xerr.Wrap(xerr.KindPeerGone, "tcp.DialWithRetry", lastErr)
}

// ID returns this particle's peer identity (the remote address, unless
// a reactor assigned one).
func (p *Particle) ID() string { return p.id }

// State reports the connection's liveness as tracked by connstate,
// letting callers detect a remote-initiated close without an extra read
// (spec.md §4.15 domain-stack wiring).
func (p *Particle) State() connstate.ConnState { return p.conn.State() }

func (p *Particle) onFrame(payload []byte) {
	if p.cfg.FrameMode == frame.CopyOnDispatch {
		owned := xbytes.Get(len(payload))
		copy(owned, payload)
		payload = owned
	}
	if p.dispatch != nil {
		p.dispatch(particle.Event{Kind: particle.EventReceived, Peer: p.id, View: payload})
	}
}

func (p *Particle) onFrameError(err error) {
	p.log.Warnw("frame header invalid, resynced", "peer", p.id, "error", err)
}

// readLoop reads length-prefixed frames straight off the bufiox.Reader
// netx.Wrap constructed for this connection: Peek the header without
// consuming it, resync by skipping a single byte at a time (spec.md
// §4.11) while it's invalid, then Next the header and the payload it
// names.
func (p *Particle) readLoop() {
	defer p.wg.Done()
	r := p.conn.Reader()

	for {
		n, err := p.readHeader(r)
		if err != nil {
			p.closeWithErr(xerr.Wrap(xerr.KindPeerGone, "tcp.Particle.readLoop", err))
			return
		}

		payload, err := r.Next(n)
		if err != nil {
			p.closeWithErr(xerr.Wrap(xerr.KindPeerGone, "tcp.Particle.readLoop", err))
			return
		}

		p.onFrame(payload)

		if err := r.Release(nil); err != nil {
			p.closeWithErr(xerr.Wrap(xerr.KindPeerGone, "tcp.Particle.readLoop", err))
			return
		}
	}
}

func (p *Particle) readHeader(r bufiox.Reader) (int, error) {
	for {
		hdr, err := r.Peek(frame.HeaderSize)
		if err != nil {
			return 0, err
		}
		n, decErr := frame.DecodeHeader(hdr, p.cfg.MaxFrame)
		if decErr == nil {
			if _, err := r.Next(frame.HeaderSize); err != nil {
				return 0, err
			}
			return n, nil
		}
		p.onFrameError(decErr)
		if err := r.Skip(1); err != nil {
			return 0, err
		}
	}
}

// Send writes payload as a length-prefixed frame through the
// connection's bufiox.Writer (spec.md §4.12), serialized against
// concurrent senders since a Writer's Malloc/Flush pair is not itself
// safe for concurrent use.
func (p *Particle) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if len(payload) > p.cfg.MaxFrame {
		return xerr.ErrOversize
	}
	if p.closed.Load() {
		return xerr.ErrClosed
	}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	w := p.conn.Writer()
	buf, err := w.Malloc(frame.HeaderSize + len(payload))
	if err != nil {
		return xerr.Wrap(xerr.KindExhausted, "tcp.Particle.Send", err)
	}
	frame.EncodeHeader(buf[:frame.HeaderSize], len(payload))
	copy(buf[frame.HeaderSize:], payload)

	if err := w.Flush(); err != nil {
		return xerr.Wrap(xerr.KindPeerGone, "tcp.Particle.Send", err)
	}
	return nil
}

// SendAsync honors ctx cancellation before attempting Send; once the
// underlying Write syscall is in flight it completes or fails with the
// connection, same as Send.
func (p *Particle) SendAsync(ctx context.Context, payload []byte) error {
	select {
	case <-ctx.Done():
		return xerr.ErrCancelled
	default:
	}
	return p.Send(payload)
}

func (p *Particle) closeWithErr(cause error) {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	_ = p.conn.Close()
	if p.dispatch != nil {
		p.dispatch(particle.Event{Kind: particle.EventDisconnected, Peer: p.id, Err: cause})
	}
}

// Dispose closes the connection and joins the receive loop. Idempotent.
func (p *Particle) Dispose() error {
	p.closeWithErr(nil)
	p.wg.Wait()
	return nil
}

var _ particle.Particle = (*Particle)(nil)
