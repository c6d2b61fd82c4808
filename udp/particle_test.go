package udp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/particlenet/particle/particle"
	"github.com/particlenet/particle/xlog"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxDatagram = 1024
	cfg.ReadTimeout = 20 * time.Millisecond
	return cfg
}

func TestUnicastSendReceiveRoundTrip(t *testing.T) {
	cfg := testConfig()

	bEvents := make(chan particle.Event, 4)
	b, err := New("127.0.0.1:0", "", cfg, xlog.Nop(), func(ev particle.Event) {
		bEvents <- ev
	})
	require.NoError(t, err)
	defer b.Dispose()

	a, err := New("127.0.0.1:0", b.LocalAddr().String(), cfg, xlog.Nop(), nil)
	require.NoError(t, err)
	defer a.Dispose()

	require.NoError(t, a.Send([]byte("ping")))

	select {
	case ev := <-bEvents:
		require.Equal(t, particle.EventReceived, ev.Kind)
		require.Equal(t, "ping", string(ev.View))
		require.Equal(t, a.LocalAddr().String(), ev.Peer)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}

func TestSendWithoutRemoteFails(t *testing.T) {
	cfg := testConfig()
	p, err := New("127.0.0.1:0", "", cfg, xlog.Nop(), nil)
	require.NoError(t, err)
	defer p.Dispose()

	err = p.Send([]byte("x"))
	require.Error(t, err)
}

func TestSendRejectsOversizeDatagram(t *testing.T) {
	cfg := testConfig()
	a, err := New("127.0.0.1:0", "", cfg, xlog.Nop(), nil)
	require.NoError(t, err)
	defer a.Dispose()

	b, err := New("127.0.0.1:0", a.LocalAddr().String(), cfg, xlog.Nop(), nil)
	require.NoError(t, err)
	defer b.Dispose()

	err = b.Send(make([]byte, cfg.MaxDatagram+1))
	require.Error(t, err)
}

func TestSendIgnoresZeroLength(t *testing.T) {
	cfg := testConfig()
	a, err := New("127.0.0.1:0", "", cfg, xlog.Nop(), nil)
	require.NoError(t, err)
	defer a.Dispose()

	b, err := New("127.0.0.1:0", a.LocalAddr().String(), cfg, xlog.Nop(), nil)
	require.NoError(t, err)
	defer b.Dispose()

	require.NoError(t, b.Send(nil))
}

func TestDisposeStopsReadLoop(t *testing.T) {
	cfg := testConfig()
	p, err := New("127.0.0.1:0", "", cfg, xlog.Nop(), nil)
	require.NoError(t, err)
	require.NoError(t, p.Dispose())
	require.Error(t, p.Send([]byte("x")))
}
