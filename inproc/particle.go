// Package inproc implements the in-process substrate: two particles in
// the same process connected back to back by a pair of lock-free MPSC
// queues instead of a socket or shared-memory ring (spec.md §4.14). It
// is the cheapest of the four substrates and doubles as a way to drive
// reactor-shaped code (tests, local fan-out) without touching the
// network or a mapped file.
package inproc

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/particlenet/particle/particle"
	"github.com/particlenet/particle/queue"
	"github.com/particlenet/particle/xbytes"
	"github.com/particlenet/particle/xerr"
	"github.com/particlenet/particle/xlog"
)

// Particle is one end of an in-process pair. Sends copy payload into a
// pooled buffer and push it onto the peer's inbound queue; a dedicated
// drain goroutine pops frames off this particle's own inbound queue and
// delivers them through dispatch.
type Particle struct {
	id   string
	cfg  Config
	log  *xlog.Logger

	inbound  *queue.MPSC[[]byte]
	outbound *queue.MPSC[[]byte]
	peer     *Particle

	dispatch particle.Dispatcher
	running  atomic.Bool
	stop     chan struct{}
	wg       sync.WaitGroup
}

// newPair builds two particles sharing a reciprocal pair of MPSC queues:
// a's outbound queue is b's inbound queue, and vice versa.
func newPair(idA, idB string, cfg Config, logger *xlog.Logger) (a, b *Particle) {
	qAtoB := queue.NewMPSC[[]byte](cfg.QueueCapacity)
	qBtoA := queue.NewMPSC[[]byte](cfg.QueueCapacity)

	a = &Particle{
		id:       idA,
		cfg:      cfg,
		log:      xlog.Named(logger, "inproc.particle."+idA),
		inbound:  qBtoA,
		outbound: qAtoB,
		stop:     make(chan struct{}),
	}
	b = &Particle{
		id:       idB,
		cfg:      cfg,
		log:      xlog.Named(logger, "inproc.particle."+idB),
		inbound:  qAtoB,
		outbound: qBtoA,
		stop:     make(chan struct{}),
	}
	a.peer = b
	b.peer = a
	return a, b
}

// start launches the drain goroutine and wires dispatch. A Particle does
// nothing until started.
func (p *Particle) start(dispatch particle.Dispatcher) {
	p.dispatch = dispatch
	p.running.Store(true)
	p.wg.Add(1)
	go p.drainLoop()
}

// ID returns this particle's peer identity.
func (p *Particle) ID() string { return p.id }

func (p *Particle) drainLoop() {
	defer p.wg.Done()
	spin := uint64(1)
	for {
		v, ok := p.inbound.Pop()
		if !ok {
			select {
			case <-p.stop:
				return
			default:
			}
			for i := uint64(0); i < spin; i++ {
				runtime.Gosched()
			}
			spin *= 2
			if spin > p.cfg.SpinMax {
				spin = p.cfg.SpinMax
			}
			continue
		}
		spin = 1
		if p.dispatch != nil {
			p.dispatch(particle.Event{Kind: particle.EventReceived, Peer: p.id, View: v})
		}
		xbytes.Put(v)
	}
}

// Send copies payload into a pooled buffer and pushes it onto the peer's
// inbound queue. Zero-length payloads are dropped silently.
func (p *Particle) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if len(payload) > p.cfg.MaxPayload {
		return xerr.ErrOversize
	}
	if !p.running.Load() {
		return xerr.ErrClosed
	}

	buf := xbytes.Get(len(payload))
	copy(buf, payload)
	if !p.outbound.Push(buf) {
		xbytes.Put(buf)
		return xerr.ErrWouldBlock
	}
	return nil
}

// SendAsync retries Send with a bounded exponential backoff until the
// queue drains or ctx is done.
func (p *Particle) SendAsync(ctx context.Context, payload []byte) error {
	spin := uint64(1)
	for {
		err := p.Send(payload)
		if !isBackpressure(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return xerr.ErrCancelled
		default:
		}
		for i := uint64(0); i < spin; i++ {
			runtime.Gosched()
		}
		spin *= 2
		if spin > p.cfg.SpinMax {
			spin = p.cfg.SpinMax
		}
	}
}

func isBackpressure(err error) bool {
	kind, ok := xerr.KindOf(err)
	return ok && kind == xerr.KindBackpressure
}

// Dispose stops this particle's drain loop, joins it, fires
// EventDisconnected, and force-stops its peer so the pair never leaks a
// goroutine reading from an abandoned queue. Idempotent.
func (p *Particle) Dispose() error {
	if !p.running.CompareAndSwap(true, false) {
		return nil
	}
	close(p.stop)
	p.wg.Wait()
	if p.dispatch != nil {
		p.dispatch(particle.Event{Kind: particle.EventDisconnected, Peer: p.id})
	}
	if p.peer != nil {
		p.peer.forceStop()
	}
	return nil
}

// forceStop stops the drain loop without attempting to stop the peer
// again, so a two-sided Dispose can't recurse.
func (p *Particle) forceStop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stop)
	p.wg.Wait()
	if p.dispatch != nil {
		p.dispatch(particle.Event{Kind: particle.EventDisconnected, Peer: p.id, Err: xerr.ErrClosed})
	}
}

var _ particle.Particle = (*Particle)(nil)
