// Package particle defines the endpoint abstraction every substrate
// (in-process, shared-memory IPC, TCP, UDP) implements: a duplex
// particle in client role, or a reactor accepting many particles in
// server role. Each substrate package (ipc, tcp, inproc, udp) provides
// its own concrete type satisfying these interfaces; this package only
// names the shared contract and the event shape delivered to callbacks.
package particle

import "context"

// EventKind discriminates the events delivered to a Dispatcher.
type EventKind int

const (
	// EventReceived carries a payload view in Event.View.
	EventReceived EventKind = iota
	// EventConnected fires once when a peer attaches (reactor role only).
	EventConnected
	// EventDisconnected fires once when a peer or the local endpoint
	// disposes. Event.Err is non-nil if the disconnect was caused by a
	// failure rather than a clean Dispose.
	EventDisconnected
)

// String renders the EventKind for logging.
func (k EventKind) String() string {
	switch k {
	case EventReceived:
		return "received"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is the single shape delivered to every callback across every
// substrate. For reactor-role endpoints Peer is the peer's identity.
// Particle-role endpoints fill it with a substrate-specific identity (the
// TCP remote address, the UDP sender address, the IPC or in-process
// particle id) and may leave it empty, as UDP disconnect events do. View
// is only valid for the duration of the
// callback invocation — copy it if it needs to outlive the call.
type Event struct {
	Kind EventKind
	Peer string
	View []byte
	Err  error
}

// Dispatcher is the single callback every particle or reactor is
// constructed with. Embedders that need multicast or per-kind routing
// compose their own fan-out inside this one function.
type Dispatcher func(Event)

// Particle is a single duplex endpoint: one local side, one remote peer.
type Particle interface {
	// Send transmits payload, blocking or busy-spinning as the substrate
	// requires until it is queued or accepted.
	Send(payload []byte) error
	// SendAsync transmits payload, honoring ctx cancellation while
	// waiting for backpressure to clear.
	SendAsync(ctx context.Context, payload []byte) error
	// Dispose tears the endpoint down. Idempotent.
	Dispose() error
}

// Reactor accepts and manages many peer particles.
type Reactor interface {
	// Start begins accepting/attaching peers.
	Start() error
	// Send routes payload to the named peer, silently dropping it if the
	// peer is unknown.
	Send(peer string, payload []byte) error
	// Broadcast sends payload to every currently attached peer, swallowing
	// per-peer failures so one dead peer never stops the rest.
	Broadcast(payload []byte) error
	// Dispose stops accepting, disposes every attached peer, and
	// releases reactor-owned resources. Idempotent.
	Dispose() error
}
