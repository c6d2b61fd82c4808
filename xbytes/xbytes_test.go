package xbytes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetReturnsRequestedLength(t *testing.T) {
	buf := Get(128)
	require.Len(t, buf, 128)
	Put(buf)
}

func TestGetZero(t *testing.T) {
	buf := Get(0)
	require.Len(t, buf, 0)
}
