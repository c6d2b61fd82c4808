package inproc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/particlenet/particle/particle"
	"github.com/particlenet/particle/xlog"
)

func TestReactorConnectAndExchange(t *testing.T) {
	cfg := testConfig()
	serverEvents := make(chan particle.Event, 4)
	reactor := NewReactor(cfg, xlog.Nop(), func(ev particle.Event) {
		serverEvents <- ev
	})
	require.NoError(t, reactor.Start())
	defer reactor.Dispose()

	clientEvents := make(chan particle.Event, 4)
	client, err := reactor.Connect(func(ev particle.Event) {
		clientEvents <- ev
	})
	require.NoError(t, err)
	defer client.Dispose()

	var id string
	select {
	case ev := <-serverEvents:
		require.Equal(t, particle.EventConnected, ev.Kind)
		id = ev.Peer
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for connect event")
	}
	require.Equal(t, id, client.ID())

	require.NoError(t, client.Send([]byte("ping")))
	select {
	case ev := <-serverEvents:
		require.Equal(t, particle.EventReceived, ev.Kind)
		require.Equal(t, "ping", string(ev.View))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for server receive")
	}

	require.NoError(t, reactor.Send(id, []byte("pong")))
	select {
	case ev := <-clientEvents:
		require.Equal(t, particle.EventReceived, ev.Kind)
		require.Equal(t, "pong", string(ev.View))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for client receive")
	}
}

func TestReactorConnectBeforeStartFails(t *testing.T) {
	cfg := testConfig()
	reactor := NewReactor(cfg, xlog.Nop(), nil)
	_, err := reactor.Connect(nil)
	require.Error(t, err)
}

func TestReactorSendToUnknownPeerIsNoop(t *testing.T) {
	cfg := testConfig()
	reactor := NewReactor(cfg, xlog.Nop(), nil)
	require.NoError(t, reactor.Start())
	defer reactor.Dispose()

	require.NoError(t, reactor.Send("nobody", []byte("x")))
}

func TestReactorBroadcastReachesAllClients(t *testing.T) {
	cfg := testConfig()
	reactor := NewReactor(cfg, xlog.Nop(), nil)
	require.NoError(t, reactor.Start())
	defer reactor.Dispose()

	received := make(chan string, 2)
	for i := 0; i < 2; i++ {
		c, err := reactor.Connect(func(ev particle.Event) {
			if ev.Kind == particle.EventReceived {
				received <- string(ev.View)
			}
		})
		require.NoError(t, err)
		defer c.Dispose()
	}

	require.NoError(t, reactor.Broadcast([]byte("hi")))

	for i := 0; i < 2; i++ {
		select {
		case msg := <-received:
			require.Equal(t, "hi", msg)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for broadcast delivery")
		}
	}
}

func TestReactorDisposeDisconnectsClients(t *testing.T) {
	cfg := testConfig()
	reactor := NewReactor(cfg, xlog.Nop(), nil)
	require.NoError(t, reactor.Start())

	disconnected := make(chan struct{}, 1)
	client, err := reactor.Connect(func(ev particle.Event) {
		if ev.Kind == particle.EventDisconnected {
			disconnected <- struct{}{}
		}
	})
	require.NoError(t, err)

	require.NoError(t, reactor.Dispose())

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for client disconnect")
	}
	require.Error(t, client.Send([]byte("too late")))
}
