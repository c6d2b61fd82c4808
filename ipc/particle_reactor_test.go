package ipc

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/particlenet/particle/particle"
	"github.com/particlenet/particle/shmmem"
	"github.com/particlenet/particle/xlog"
)

func cleanupBase(base string) {
	shmmem.Remove(shmmem.Local, base+".registry")
	os.Remove(shmmem.Path(shmmem.Local, base+".registry") + ".mtx")
}

func TestParticleReactorAttachAndExchange(t *testing.T) {
	cfg := testConfig()
	cfg.RegistryPollInterval = 5 * time.Millisecond
	base := uniqueName(t)
	defer cleanupBase(base)

	var mu sync.Mutex
	var serverSawConnect bool
	var serverSawPayload string
	serverEvents := make(chan struct{}, 4)

	reactor := NewReactor(shmmem.Local, base, cfg, xlog.Nop(), nil, func(ev particle.Event) {
		mu.Lock()
		switch ev.Kind {
		case particle.EventConnected:
			serverSawConnect = true
		case particle.EventReceived:
			serverSawPayload = string(ev.View)
		}
		mu.Unlock()
		serverEvents <- struct{}{}
	})
	require.NoError(t, reactor.Start())
	defer reactor.Dispose()

	clientEvents := make(chan particle.Event, 4)
	client, err := NewParticle(shmmem.Local, base, 0x42, cfg, xlog.Nop(), nil, func(ev particle.Event) {
		clientEvents <- ev
	})
	require.NoError(t, err)
	defer client.Dispose()

	// wait for the reactor to attach the new client
	select {
	case <-serverEvents:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for attach")
	}
	mu.Lock()
	require.True(t, serverSawConnect)
	mu.Unlock()

	require.NoError(t, client.Send([]byte("ping")))

	select {
	case <-serverEvents:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server receive")
	}
	mu.Lock()
	require.Equal(t, "ping", serverSawPayload)
	mu.Unlock()

	require.NoError(t, reactor.Send(client.ID(), []byte("pong")))

	select {
	case ev := <-clientEvents:
		require.Equal(t, particle.EventReceived, ev.Kind)
		require.Equal(t, "pong", string(ev.View))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client receive")
	}
}

func TestReactorSendToUnknownPeerIsNoop(t *testing.T) {
	cfg := testConfig()
	base := uniqueName(t)
	defer cleanupBase(base)

	reactor := NewReactor(shmmem.Local, base, cfg, xlog.Nop(), nil, func(particle.Event) {})
	require.NoError(t, reactor.Start())
	defer reactor.Dispose()

	require.NoError(t, reactor.Send("feedfeedfeedfeed", []byte("x")))
}
