package inproc

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/particlenet/particle/clientmap"
	"github.com/particlenet/particle/particle"
	"github.com/particlenet/particle/xerr"
	"github.com/particlenet/particle/xlog"
)

// Reactor is the server side of the in-process substrate. Instead of
// accepting sockets it hands out Connect-ed particle pairs: the caller
// gets back the client-facing Particle, the reactor keeps the
// server-facing half and fans its events through dispatch, addressed by
// the same assigned client id (spec.md §4.16's explicit per-client
// Send/Broadcast contract, mirrored here for consistency across
// substrates — see DESIGN.md).
type Reactor struct {
	cfg Config
	log *xlog.Logger

	dispatch particle.Dispatcher
	clients  *clientmap.Map[*Particle]
	nextID   uint64

	mu      sync.Mutex
	running bool
}

// NewReactor constructs an in-process reactor. dispatch receives
// EventConnected/EventReceived/EventDisconnected for every Connect-ed
// client, with Event.Peer set to an assigned client id.
func NewReactor(cfg Config, logger *xlog.Logger, onEvent particle.Dispatcher) *Reactor {
	return &Reactor{
		cfg:      cfg,
		log:      xlog.Named(logger, "inproc.reactor"),
		dispatch: onEvent,
		clients:  clientmap.New[*Particle](),
	}
}

// Start marks the reactor ready to accept Connect calls. Idempotent.
func (r *Reactor) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = true
	return nil
}

// Connect creates a new in-process client attached to this reactor and
// returns the client-facing Particle. clientDispatch receives events for
// the client side of the pair; it may be nil.
func (r *Reactor) Connect(clientDispatch particle.Dispatcher) (*Particle, error) {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()
	if !running {
		return nil, xerr.New(xerr.KindMisuse, "inproc.Reactor.Connect: not started")
	}

	id := fmt.Sprintf("%016X", atomic.AddUint64(&r.nextID, 1))
	serverSide, clientSide := newPair(id, id, r.cfg, r.log)

	serverSide.start(func(ev particle.Event) {
		if ev.Kind == particle.EventDisconnected {
			r.clients.Delete(id)
		}
		if r.dispatch != nil {
			r.dispatch(ev)
		}
	})
	clientSide.start(clientDispatch)

	r.clients.Store(id, serverSide)
	if r.dispatch != nil {
		r.dispatch(particle.Event{Kind: particle.EventConnected, Peer: id})
	}
	return clientSide, nil
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

// Dispose disposes every connected (server-side) particle, which in turn
// force-stops its paired client side.
func (r *Reactor) Dispose() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()

	r.clients.Range(func(_ string, p *Particle) {
		_ = p.Dispose()
	})
	r.clients.Clear()
	return nil
}

var _ particle.Reactor = (*Reactor)(nil)
