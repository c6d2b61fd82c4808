package ipc

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/particlenet/particle/particle"
	"github.com/particlenet/particle/shmmem"
	"github.com/particlenet/particle/xlog"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RingSize = 4096
	cfg.MaxPayload = 256
	cfg.AttachRetries = 3
	cfg.AttachRetryDelay = time.Millisecond
	cfg.DisposeJoinTimeout = 50 * time.Millisecond
	return cfg
}

func uniqueName(t *testing.T) string {
	return fmt.Sprintf("test-%s-%d", t.Name(), time.Now().UnixNano())
}

func TestChannelSendReceiveRoundTrip(t *testing.T) {
	cfg := testConfig()
	name := uniqueName(t)
	defer shmmem.Remove(shmmem.Local, name)

	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 1)

	reader, err := Open(shmmem.Local, name, cfg.RingSize, RoleReader, cfg, xlog.Nop(), nil, func(ev particle.Event) {
		mu.Lock()
		got = append(got, string(ev.View))
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer reader.Dispose()

	writer, err := Open(shmmem.Local, name, cfg.RingSize, RoleWriter, cfg, xlog.Nop(), nil, nil)
	require.NoError(t, err)
	defer writer.Dispose()

	require.NoError(t, writer.Send([]byte("hello")))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"hello"}, got)
}

func TestChannelSendIgnoresZeroLength(t *testing.T) {
	cfg := testConfig()
	name := uniqueName(t)
	defer shmmem.Remove(shmmem.Local, name)

	writer, err := Open(shmmem.Local, name, cfg.RingSize, RoleWriter, cfg, xlog.Nop(), nil, nil)
	require.NoError(t, err)
	defer writer.Dispose()

	require.NoError(t, writer.Send(nil))
}

func TestChannelDisposeStopsReaderWithinTimeout(t *testing.T) {
	cfg := testConfig()
	name := uniqueName(t)
	defer shmmem.Remove(shmmem.Local, name)

	reader, err := Open(shmmem.Local, name, cfg.RingSize, RoleReader, cfg, xlog.Nop(), nil, func(particle.Event) {})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, reader.Dispose())
	require.Less(t, time.Since(start), time.Second)
}
