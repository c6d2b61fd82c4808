package cursor

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestCursorLoadStore(t *testing.T) {
	var c Cursor
	require.Equal(t, uint64(0), c.Load())
	c.Store(42)
	require.Equal(t, uint64(42), c.Load())
}

func TestCursorAdd(t *testing.T) {
	var c Cursor
	require.Equal(t, uint64(5), c.Add(5))
	require.Equal(t, uint64(8), c.Add(3))
}

func TestCursorCompareAndSwap(t *testing.T) {
	var c Cursor
	c.Store(10)
	require.False(t, c.CompareAndSwap(9, 99))
	require.Equal(t, uint64(10), c.Load())
	require.True(t, c.CompareAndSwap(10, 99))
	require.Equal(t, uint64(99), c.Load())
}

func TestPairCursorsDoNotShareACacheLine(t *testing.T) {
	var p Pair
	headAddr := uintptr(unsafe.Pointer(&p.Head))
	tailAddr := uintptr(unsafe.Pointer(&p.Tail))
	diff := tailAddr - headAddr
	require.GreaterOrEqual(t, diff, uintptr(cacheLineSize))
}
