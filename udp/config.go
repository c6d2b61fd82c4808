package udp

import "time"

// Config configures a UDP particle. Datagrams are sent and received
// opaquely, with no framing layer: the interesting behavior here is pure
// OS socket option configuration (multicast join, loopback, TTL,
// broadcast), which is why this package stays thin relative to the IPC
// and TCP substrates.
type Config struct {
	// MulticastGroup, if non-empty, is joined on Open using Interface (or
	// the default multicast interface if Interface is empty).
	MulticastGroup string
	// Interface names the network interface multicast join/send uses.
	Interface string
	// MulticastTTL sets the outgoing multicast hop limit.
	MulticastTTL int
	// MulticastLoopback controls whether this host receives its own
	// multicast sends back.
	MulticastLoopback bool
	// Broadcast enables SO_BROADCAST so sends to a broadcast address
	// succeed.
	Broadcast bool
	// MaxDatagram bounds a single Send/receive buffer.
	MaxDatagram int
	// ReadTimeout bounds how long a blocked read waits before Dispose can
	// reclaim the read goroutine; zero means no deadline.
	ReadTimeout time.Duration
	// RecvSlicesPerSlab sizes the pinned buffer pool (spec.md §4.2) that
	// backs each dispatched datagram's owned copy: that many MaxDatagram
	// slices are held ready per underlying slab before the pool grows.
	RecvSlicesPerSlab int
}

// DefaultConfig returns spec.md-consistent defaults: TTL 1 (link-local),
// loopback on, broadcast off, 64KiB max datagram.
func DefaultConfig() Config {
	return Config{
		MulticastTTL:      1,
		MulticastLoopback: true,
		MaxDatagram:       64 * 1024,
		ReadTimeout:       200 * time.Millisecond,
		RecvSlicesPerSlab: 32,
	}
}
