package dispatch

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/particlenet/particle/xlog"
)

func TestPerPeerOrderingPreserved(t *testing.T) {
	d := New(4, 64, xlog.Nop())
	defer d.Close()

	const n = 200
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		i := i
		d.Dispatch("peer-a", func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.Equal(t, i, order[i])
	}
}

func TestDifferentPeersCanRunConcurrently(t *testing.T) {
	d := New(8, 16, xlog.Nop())
	defer d.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		peer := fmt.Sprintf("peer-%d", i)
		d.Dispatch(peer, func() {
			defer wg.Done()
		})
	}
	wg.Wait()
}

func TestPanicInCallbackDoesNotKillLane(t *testing.T) {
	d := New(2, 4, xlog.Nop())
	defer d.Close()

	d.Dispatch("peer-x", func() { panic("boom") })

	var wg sync.WaitGroup
	wg.Add(1)
	d.Dispatch("peer-x", func() { wg.Done() })
	wg.Wait()
}

func TestCloseStopsLanes(t *testing.T) {
	d := New(1, 1, xlog.Nop())
	d.Close()
	ok := d.TryDispatch("peer", func() {})
	require.False(t, ok, "TryDispatch must refuse work once the Dispatcher is closed")
}
