package particle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventKindString(t *testing.T) {
	require.Equal(t, "received", EventReceived.String())
	require.Equal(t, "connected", EventConnected.String())
	require.Equal(t, "disconnected", EventDisconnected.String())
	require.Equal(t, "unknown", EventKind(99).String())
}
