package tcp

import (
	"time"

	"github.com/particlenet/particle/frame"
)

// Config configures a TCP particle or reactor. One Config is shared by
// the dial path and the accept path (spec.md §9's uniform post-accept
// configuration decision — see DESIGN.md), so a client and a server
// built from the same Config never diverge on buffer sizing or framing.
type Config struct {
	// MaxFrame bounds any single frame payload.
	MaxFrame int
	// FrameMode selects zero-copy or copy-on-dispatch delivery. Reactor
	// peers redispatch events asynchronously onto per-peer lanes (see
	// dispatch.Dispatcher), so a view that is only valid "for the
	// duration of the callback" (particle.Event's contract) must be
	// copied before it crosses that boundary — CopyOnDispatch is the
	// default for exactly that reason.
	FrameMode frame.Mode
	// ReadBufferSize / WriteBufferSize set the accepted/dialed socket's
	// kernel receive/send buffers (spec.md §4.12: "large send/receive
	// kernel buffers"). Zero leaves the OS default in place.
	ReadBufferSize  int
	WriteBufferSize int
	// NoDelay disables Nagle's algorithm on accepted/dialed sockets.
	NoDelay bool
	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration
	// ReconnectMaxAttempts / ReconnectBackoff parametrize DialWithRetry
	// (spec.md §8 scenario 6, "Reconnect").
	ReconnectMaxAttempts int
	ReconnectBackoff     time.Duration
}

// DefaultConfig returns spec.md-consistent defaults: 4KiB max frames,
// copy-on-dispatch delivery, 256KiB kernel socket buffers, NoDelay on.
func DefaultConfig() Config {
	return Config{
		MaxFrame:             4096,
		FrameMode:            frame.CopyOnDispatch,
		ReadBufferSize:       256 * 1024,
		WriteBufferSize:      256 * 1024,
		NoDelay:              true,
		DialTimeout:          5 * time.Second,
		ReconnectMaxAttempts: 5,
		ReconnectBackoff:     200 * time.Millisecond,
	}
}
