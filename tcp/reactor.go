package tcp

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/particlenet/particle/clientmap"
	"github.com/particlenet/particle/dispatch"
	"github.com/particlenet/particle/particle"
	"github.com/particlenet/particle/xlog"
	"github.com/particlenet/particle/xtime"
)

// Reactor accepts TCP connections and exposes each as a per-peer
// Particle (spec.md §4.13). Inbound events are fanned out through a
// dispatch.Dispatcher so concurrent peers run in parallel while each
// peer's own events stay strictly ordered.
type Reactor struct {
	addr string
	cfg  Config
	log  *xlog.Logger
	clock *xtime.Clock

	userDispatch particle.Dispatcher
	pool         *dispatch.Dispatcher

	clients *clientmap.Map[*Particle]
	nextID  uint64

	ln net.Listener

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewReactor constructs a TCP reactor listening on addr once Start is
// called. dispatch receives EventConnected/EventReceived/EventDisconnected
// for every accepted peer, with Event.Peer set to an assigned client id.
func NewReactor(addr string, cfg Config, logger *xlog.Logger, clock *xtime.Clock, onEvent particle.Dispatcher) *Reactor {
	log := xlog.Named(logger, "tcp.reactor")
	return &Reactor{
		addr:         addr,
		cfg:          cfg,
		log:          log,
		clock:        clock,
		userDispatch: onEvent,
		pool:         dispatch.New(8, 256, log),
		clients:      clientmap.New[*Particle](),
		stop:         make(chan struct{}),
	}
}

// Start opens the listener and launches the accept loop. Idempotent.
func (r *Reactor) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	ln, err := net.Listen("tcp", r.addr)
	if err != nil {
		return err
	}
	r.ln = ln
	r.running = true
	r.wg.Add(1)
	go r.acceptLoop()
	return nil
}

// Addr returns the listener's bound address. Only valid after Start.
func (r *Reactor) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ln == nil {
		return nil
	}
	return r.ln.Addr()
}

func (r *Reactor) acceptLoop() {
	defer r.wg.Done()
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			select {
			case <-r.stop:
				return
			default:
				r.log.Warnw("accept failed", "error", err)
				return
			}
		}
		r.handleAccept(conn)
	}
}

func (r *Reactor) handleAccept(conn net.Conn) {
	id := fmt.Sprintf("%016X", atomic.AddUint64(&r.nextID, 1))

	p, err := newParticle(conn, id, r.cfg, r.log, r.clock, func(ev particle.Event) {
		r.pool.Dispatch(ev.Peer, func() {
			if ev.Kind == particle.EventDisconnected {
				r.clients.Delete(ev.Peer)
			}
			if r.userDispatch != nil {
				r.userDispatch(ev)
			}
		})
	})
	if err != nil {
		r.log.Warnw("accept: particle construction failed", "error", err)
		_ = conn.Close()
		return
	}

	r.clients.Store(id, p)
	if r.userDispatch != nil {
		r.pool.Dispatch(id, func() {
			r.userDispatch(particle.Event{Kind: particle.EventConnected, Peer: id})
		})
	}
}

// Send routes payload to the named peer, silently dropping it if id is
// unknown.
func (r *Reactor) Send(peer string, payload []byte) error {
	p, ok := r.clients.Load(peer)
	if !ok {
		return nil
	}
	return p.Send(payload)
}

// Broadcast sends payload to every connected peer, swallowing per-peer
// failures so one dead peer does not stop the rest.
func (r *Reactor) Broadcast(payload []byte) error {
	r.clients.Range(func(id string, p *Particle) {
		if err := p.Send(payload); err != nil {
			r.log.Debugw("broadcast: per-peer send failed", "id", id, "error", err)
		}
	})
	return nil
}

// Dispose stops accepting, disposes every connected particle, and closes
// the listener. Idempotent.
func (r *Reactor) Dispose() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()

	close(r.stop)
	var err error
	if r.ln != nil {
		err = r.ln.Close()
	}
	r.wg.Wait()

	r.clients.Range(func(_ string, p *Particle) {
		_ = p.Dispose()
	})
	r.clients.Clear()
	r.pool.Close()
	return err
}

var _ particle.Reactor = (*Reactor)(nil)
