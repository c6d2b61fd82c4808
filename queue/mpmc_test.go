package queue

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMPMCPushPop(t *testing.T) {
	q := NewMPMC[int](4)
	require.True(t, q.Push(10))
	v, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, 10, v)
	_, ok = q.Pop()
	require.False(t, ok)
}

func TestMPMCConcurrentProducersConsumers(t *testing.T) {
	const n = 50_000
	q := NewMPMC[int](1024)

	var produced, consumed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(4 + 4)
	for i := 0; i < 4; i++ {
		go func() {
			defer wg.Done()
			for {
				if produced.Add(1) > n {
					return
				}
				for !q.Push(1) {
				}
			}
		}()
	}
	for i := 0; i < 4; i++ {
		go func() {
			defer wg.Done()
			for consumed.Load() < n {
				if _, ok := q.Pop(); ok {
					consumed.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	require.GreaterOrEqual(t, consumed.Load(), int64(n))
}
