// Package udp implements the datagram substrate: a thin wrapper over
// net.UDPConn that layers multicast join, loopback, TTL, and broadcast
// socket options on top (spec.md §1, §4 — deliberately thin since its
// only interesting content is OS socket configuration). Datagrams are
// delivered opaquely, with no length-prefix framing.
package udp

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/particlenet/particle/bufpool"
	"github.com/particlenet/particle/particle"
	"github.com/particlenet/particle/xerr"
	"github.com/particlenet/particle/xlog"
)

// Particle is a single UDP endpoint: unicast if constructed with only a
// remote address, multicast if constructed with a MulticastGroup,
// broadcast if constructed with Config.Broadcast and a broadcast remote
// address.
type Particle struct {
	conn   *net.UDPConn
	pc     *ipv4.PacketConn // non-nil only when a multicast group was joined
	remote *net.UDPAddr
	cfg    Config

	recvPool *bufpool.Pool

	dispatch particle.Dispatcher
	log      *xlog.Logger

	closed atomic.Bool
	wg     sync.WaitGroup
}

// New opens a UDP socket bound to localAddr (":0" style addresses pick an
// ephemeral port). remoteAddr is the fixed peer Send writes to; it may
// name a unicast host, a multicast group, or a broadcast address. If
// cfg.MulticastGroup is set, the socket also joins that group for
// receiving, independent of remoteAddr.
func New(localAddr, remoteAddr string, cfg Config, logger *xlog.Logger, dispatch particle.Dispatcher) (*Particle, error) {
	if localAddr == "" {
		localAddr = ":0"
	}
	laddr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindMisuse, "udp.New: resolve local", err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindMisuse, "udp.New: listen", err)
	}

	p := &Particle{
		conn:     conn,
		cfg:      cfg,
		recvPool: bufpool.NewPool(cfg.MaxDatagram, cfg.RecvSlicesPerSlab, 0),
		dispatch: dispatch,
		log:      xlog.Named(logger, "udp.particle"),
	}

	if cfg.Broadcast {
		if err := enableBroadcast(conn); err != nil {
			_ = conn.Close()
			return nil, xerr.Wrap(xerr.KindMisuse, "udp.New: enable broadcast", err)
		}
	}

	if cfg.MulticastGroup != "" {
		if err := p.joinMulticast(); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	dest := remoteAddr
	if dest == "" {
		dest = cfg.MulticastGroup
	}
	if dest != "" {
		raddr, err := net.ResolveUDPAddr("udp", dest)
		if err != nil {
			_ = conn.Close()
			return nil, xerr.Wrap(xerr.KindMisuse, "udp.New: resolve remote", err)
		}
		p.remote = raddr
	}

	p.wg.Add(1)
	go p.readLoop()
	return p, nil
}

func enableBroadcast(conn *net.UDPConn) error {
	sc, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := sc.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}

func (p *Particle) joinMulticast() error {
	group, err := net.ResolveUDPAddr("udp", p.cfg.MulticastGroup)
	if err != nil {
		return xerr.Wrap(xerr.KindMisuse, "udp.joinMulticast: resolve group", err)
	}

	var iface *net.Interface
	if p.cfg.Interface != "" {
		iface, err = net.InterfaceByName(p.cfg.Interface)
		if err != nil {
			return xerr.Wrap(xerr.KindMisuse, "udp.joinMulticast: interface lookup", err)
		}
	}

	pc := ipv4.NewPacketConn(p.conn)
	if err := pc.JoinGroup(iface, &net.UDPAddr{IP: group.IP}); err != nil {
		return xerr.Wrap(xerr.KindMisuse, "udp.joinMulticast: join", err)
	}
	if err := pc.SetMulticastLoopback(p.cfg.MulticastLoopback); err != nil {
		return xerr.Wrap(xerr.KindMisuse, "udp.joinMulticast: set loopback", err)
	}
	if p.cfg.MulticastTTL > 0 {
		if err := pc.SetMulticastTTL(p.cfg.MulticastTTL); err != nil {
			return xerr.Wrap(xerr.KindMisuse, "udp.joinMulticast: set ttl", err)
		}
	}
	if iface != nil {
		if err := pc.SetMulticastInterface(iface); err != nil {
			return xerr.Wrap(xerr.KindMisuse, "udp.joinMulticast: set interface", err)
		}
	}
	p.pc = pc
	return nil
}

// LocalAddr returns the bound local address.
func (p *Particle) LocalAddr() net.Addr { return p.conn.LocalAddr() }

func (p *Particle) readLoop() {
	defer p.wg.Done()
	buf := make([]byte, p.cfg.MaxDatagram)

	for {
		if p.closed.Load() {
			return
		}
		if p.cfg.ReadTimeout > 0 {
			_ = p.conn.SetReadDeadline(time.Now().Add(p.cfg.ReadTimeout))
		}
		n, addr, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			if p.closed.Load() {
				return
			}
			if isTimeout(err) {
				continue
			}
			p.closeWithErr(xerr.Wrap(xerr.KindPeerGone, "udp.Particle.readLoop", err))
			return
		}
		if n == 0 {
			continue
		}
		if p.dispatch != nil {
			p.dispatchDatagram(buf[:n], addr)
		}
	}
}

// dispatchDatagram copies the datagram into a pinned slice from recvPool
// (spec.md §4.2 — the read loop's scratch buffer is reused on the next
// syscall, so the dispatched view needs its own owned memory) and
// releases the slice back to the pool once the synchronous dispatch
// callback returns.
func (p *Particle) dispatchDatagram(data []byte, addr *net.UDPAddr) {
	h, ok := p.recvPool.Bind()
	if !ok {
		p.log.Warnw("recv pool exhausted, dropping datagram", "len", len(data))
		return
	}
	defer p.recvPool.Release(h)

	view := h.Bytes()[:len(data)]
	copy(view, data)

	peer := ""
	if addr != nil {
		peer = addr.String()
	}
	p.dispatch(particle.Event{Kind: particle.EventReceived, Peer: peer, View: view})
}

// Send writes payload to this particle's fixed remote address.
func (p *Particle) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if len(payload) > p.cfg.MaxDatagram {
		return xerr.ErrOversize
	}
	if p.closed.Load() {
		return xerr.ErrClosed
	}
	if p.remote == nil {
		return xerr.New(xerr.KindMisuse, "udp.Particle.Send: no remote address configured")
	}
	_, err := p.conn.WriteToUDP(payload, p.remote)
	if err != nil {
		return xerr.Wrap(xerr.KindPeerGone, "udp.Particle.Send", err)
	}
	return nil
}

// SendAsync honors ctx cancellation before attempting Send; the
// underlying write is a single non-blocking syscall on a connectionless
// socket, so there's nothing further to cancel once it starts.
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
		p.dispatch(particle.Event{Kind: particle.EventDisconnected, Err: cause})
	}
}

// Dispose closes the socket, joins the receive loop, and releases the
// receive buffer pool. Idempotent.
func (p *Particle) Dispose() error {
	p.closeWithErr(nil)
	p.wg.Wait()
	p.recvPool.Dispose()
	return nil
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

var _ particle.Particle = (*Particle)(nil)
