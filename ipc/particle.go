package ipc

import (
	"context"
	"fmt"

	"github.com/particlenet/particle/particle"
	"github.com/particlenet/particle/shmmem"
	"github.com/particlenet/particle/xlog"
	"github.com/particlenet/particle/xtime"
)

// Particle is the client-side mapped endpoint of spec.md §4.9: one
// inbound reader channel, one outbound writer channel, and one registry
// append at construction.
type Particle struct {
	base string
	id   string
	ns   shmmem.Namespace
	cfg  Config

	inbound  *Channel
	outbound *Channel

	dispatch particle.Dispatcher
	log      *xlog.Logger
}

// NewParticle constructs and registers a client-side mapped particle.
// clientID is formatted as the 16-char uppercase hex identifier spec.md
// §4.8 requires.
func NewParticle(ns shmmem.Namespace, base string, clientID uint64, cfg Config, logger *xlog.Logger, clock *xtime.Clock, dispatch particle.Dispatcher) (*Particle, error) {
	id := fmt.Sprintf("%016X", clientID)
	log := xlog.Named(logger, "ipc.particle."+id)

	p := &Particle{base: base, id: id, ns: ns, cfg: cfg, dispatch: dispatch, log: log}

	inbound, err := Open(ns, base+".S2C."+id, cfg.RingSize, RoleReader, cfg, log, clock, p.onEvent)
	if err != nil {
		return nil, err
	}
	outbound, err := Open(ns, base+".C2S."+id, cfg.RingSize, RoleWriter, cfg, log, clock, nil)
	if err != nil {
		_ = inbound.Dispose()
		return nil, err
	}
	p.inbound, p.outbound = inbound, outbound

	reg, err := OpenRegistry(ns, base, cfg.AttachRetries, cfg.AttachRetryDelay)
	if err != nil {
		_ = inbound.Dispose()
		_ = outbound.Dispose()
		return nil, err
	}
	defer reg.Close()

	if err := reg.Append(id); err != nil {
		_ = inbound.Dispose()
		_ = outbound.Dispose()
		return nil, err
	}

	return p, nil
}

func (p *Particle) onEvent(ev particle.Event) {
	ev.Peer = p.id
	if p.dispatch != nil {
		p.dispatch(ev)
	}
}

// ID returns this particle's 16-char uppercase hex client identifier.
func (p *Particle) ID() string { return p.id }

// Stats reports the inbound and outbound channel statistics.
func (p *Particle) Stats() (inbound, outbound Stats) {
	return p.inbound.Stats(), p.outbound.Stats()
}

// Send delegates to the outbound writer channel, ignoring zero-length
// payloads and propagating oversize as a failure (spec.md §4.9).
func (p *Particle) Send(payload []byte) error {
	return p.outbound.Send(payload)
}

// SendAsync is Send honoring ctx cancellation.
func (p *Particle) SendAsync(ctx context.Context, payload []byte) error {
	return p.outbound.SendAsync(ctx, payload)
}

// Dispose disposes the reader channel first, then the writer channel,
// then fires a disconnect event (spec.md §4.9). Callers must stop
// calling Send before Dispose; concurrent Send/Dispose is not supported.
// Idempotent: once both channels are disposed, further calls return nil
// without firing another disconnect event.
func (p *Particle) Dispose() error {
	if !p.inbound.running.Load() && !p.outbound.running.Load() {
		return nil
	}
	err1 := p.inbound.Dispose()
	err2 := p.outbound.Dispose()
	if p.dispatch != nil {
		p.dispatch(particle.Event{Kind: particle.EventDisconnected, Peer: p.id})
	}
	if err1 != nil {
		return err1
	}
	return err2
}

var _ particle.Particle = (*Particle)(nil)
