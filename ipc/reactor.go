package ipc

import (
	"sync"
	"time"

	"github.com/particlenet/particle/clientmap"
	"github.com/particlenet/particle/particle"
	"github.com/particlenet/particle/shmmem"
	"github.com/particlenet/particle/xlog"
	"github.com/particlenet/particle/xtime"
)

// Reactor is the server-side mapped endpoint of spec.md §4.10: it polls
// the shared registry, attaches a per-client Particle for each newly
// seen identifier, and exposes targeted send / broadcast.
type Reactor struct {
	base  string
	ns    shmmem.Namespace
	cfg   Config
	log   *xlog.Logger
	clock *xtime.Clock

	dispatch particle.Dispatcher

	reg     *Registry
	clients *clientmap.Map[*Particle]

	attachedMu sync.Mutex
	attached   map[string]bool

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewReactor constructs a mapped reactor for base. dispatch receives
// EventConnected/EventReceived/EventDisconnected for every attached
// client, with Event.Peer set to the client's hex identifier.
func NewReactor(ns shmmem.Namespace, base string, cfg Config, logger *xlog.Logger, clock *xtime.Clock, dispatch particle.Dispatcher) *Reactor {
	return &Reactor{
		base:     base,
		ns:       ns,
		cfg:      cfg,
		log:      xlog.Named(logger, "ipc.reactor"),
		clock:    clock,
		dispatch: dispatch,
		clients:  clientmap.New[*Particle](),
		attached: make(map[string]bool),
		stop:     make(chan struct{}),
	}
}

// Start opens the registry mapping (creating it if absent) and launches
// the registry poll thread. Idempotent.
func (r *Reactor) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	reg, err := OpenRegistry(r.ns, r.base, r.cfg.AttachRetries, r.cfg.AttachRetryDelay)
	if err != nil {
		return err
	}
	r.reg = reg
	r.running = true
	r.wg.Add(1)
	go r.pollLoop()
	return nil
}

func (r *Reactor) pollLoop() {
	defer r.wg.Done()
	interval := r.cfg.RegistryPollInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
			r.pollOnce()
		}
	}
}

func (r *Reactor) pollOnce() {
	ids, err := r.reg.Snapshot()
	if err != nil {
		r.log.Warnw("registry snapshot failed", "error", err)
		return
	}
	for _, id := range ids {
		r.attachedMu.Lock()
		seen := r.attached[id]
		if !seen {
			r.attached[id] = true
		}
		r.attachedMu.Unlock()

		if !seen {
			r.tryAttach(id)
		}
	}
}

// tryAttach opens the peer's C2S mapping as a reader and S2C mapping as
// a writer and constructs a per-client particle (spec.md §4.10).
func (r *Reactor) tryAttach(id string) {
	p := &Particle{base: r.base, id: id, ns: r.ns, cfg: r.cfg, dispatch: r.dispatch, log: r.log}

	reader, err := Open(r.ns, r.base+".C2S."+id, r.cfg.RingSize, RoleReader, r.cfg, r.log, r.clock, p.onEvent)
	if err != nil {
		r.log.Warnw("attach: open inbound failed", "id", id, "error", err)
		return
	}
	writer, err := Open(r.ns, r.base+".S2C."+id, r.cfg.RingSize, RoleWriter, r.cfg, r.log, r.clock, nil)
	if err != nil {
		_ = reader.Dispose()
		r.log.Warnw("attach: open outbound failed", "id", id, "error", err)
		return
	}
	p.inbound, p.outbound = reader, writer

	r.clients.Store(id, p)
	if r.dispatch != nil {
		r.dispatch(particle.Event{Kind: particle.EventConnected, Peer: id})
	}
}

// Send routes payload to the named client, silently dropping it if id is
// unknown (spec.md §4.10).
func (r *Reactor) Send(peer string, payload []byte) error {
	p, ok := r.clients.Load(peer)
	if !ok {
		return nil
	}
	return p.Send(payload)
}

// Broadcast sends payload to every attached client, swallowing
// per-client failures so one dead peer does not stop the rest.
func (r *Reactor) Broadcast(payload []byte) error {
	r.clients.Range(func(id string, p *Particle) {
		if err := p.Send(payload); err != nil {
			r.log.Debugw("broadcast: per-client send failed", "id", id, "error", err)
		}
	})
	return nil
}

// Dispose stops the poll thread, disposes every attached particle, and
// clears the client map. Idempotent.
func (r *Reactor) Dispose() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()

	close(r.stop)
	r.wg.Wait()

	r.clients.Range(func(_ string, p *Particle) {
		_ = p.Dispose()
	})
	r.clients.Clear()

	if r.reg != nil {
		return r.reg.Close()
	}
	return nil
}

var _ particle.Reactor = (*Reactor)(nil)
