package tcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/particlenet/particle/particle"
	"github.com/particlenet/particle/xlog"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxFrame = 256
	return cfg
}

func TestReactorAcceptAndExchange(t *testing.T) {
	cfg := testConfig()

	recv := make(chan particle.Event, 4)
	reactor := NewReactor("127.0.0.1:0", cfg, xlog.Nop(), nil, func(ev particle.Event) {
		recv <- ev
	})
	require.NoError(t, reactor.Start())
	defer reactor.Dispose()

	clientEvents := make(chan particle.Event, 4)
	client, err := Dial(context.Background(), reactor.Addr().String(), cfg, xlog.Nop(), nil, func(ev particle.Event) {
		clientEvents <- ev
	})
	require.NoError(t, err)
	defer client.Dispose()

	var connectedID string
	select {
	case ev := <-recv:
		require.Equal(t, particle.EventConnected, ev.Kind)
		connectedID = ev.Peer
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connect event")
	}

	require.NoError(t, client.Send([]byte("hello")))

	select {
	case ev := <-recv:
		require.Equal(t, particle.EventReceived, ev.Kind)
		require.Equal(t, "hello", string(ev.View))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server receive")
	}

	require.NoError(t, reactor.Send(connectedID, []byte("world")))

	select {
	case ev := <-clientEvents:
		require.Equal(t, particle.EventReceived, ev.Kind)
		require.Equal(t, "world", string(ev.View))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client receive")
	}
}

func TestSendRejectsOversizePayload(t *testing.T) {
	cfg := testConfig()
	reactor := NewReactor("127.0.0.1:0", cfg, xlog.Nop(), nil, func(particle.Event) {})
	require.NoError(t, reactor.Start())
	defer reactor.Dispose()

	client, err := Dial(context.Background(), reactor.Addr().String(), cfg, xlog.Nop(), nil, func(particle.Event) {})
	require.NoError(t, err)
	defer client.Dispose()

	err = client.Send(make([]byte, cfg.MaxFrame+1))
	require.Error(t, err)
}

func TestDisconnectFiresEvent(t *testing.T) {
	cfg := testConfig()
	connected := make(chan string, 1)
	disconnected := make(chan string, 1)

	reactor := NewReactor("127.0.0.1:0", cfg, xlog.Nop(), nil, func(ev particle.Event) {
		switch ev.Kind {
		case particle.EventConnected:
			connected <- ev.Peer
		case particle.EventDisconnected:
			disconnected <- ev.Peer
		}
	})
	require.NoError(t, reactor.Start())
	defer reactor.Dispose()

	client, err := Dial(context.Background(), reactor.Addr().String(), cfg, xlog.Nop(), nil, func(particle.Event) {})
	require.NoError(t, err)

	var id string
	select {
	case id = <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connect")
	}

	require.NoError(t, client.Dispose())

	select {
	case gotID := <-disconnected:
		require.Equal(t, id, gotID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnect")
	}
}

func TestDialWithRetryFailsAfterExhaustingAttempts(t *testing.T) {
	cfg := testConfig()
	cfg.ReconnectMaxAttempts = 2
	cfg.ReconnectBackoff = time.Millisecond
	cfg.DialTimeout = 50 * time.Millisecond

	_, err := DialWithRetry(context.Background(), "127.0.0.1:1", cfg, xlog.Nop(), nil, func(particle.Event) {})
	require.Error(t, err)
}
