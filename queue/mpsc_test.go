package queue

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMPSCPushPop(t *testing.T) {
	q := NewMPSC[int](4)
	require.True(t, q.Push(1))
	require.True(t, q.Push(2))
	v, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestMPSCFullReportsFalse(t *testing.T) {
	q := NewMPSC[int](2)
	require.True(t, q.Push(1))
	require.True(t, q.Push(2))
	require.False(t, q.Push(3))
}

func TestMPSCConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 2000
	q := NewMPSC[int](4096)

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !q.Push(base + i) {
				}
			}
		}(p * perProducer)
	}

	got := make([]int, 0, producers*perProducer)
	done := make(chan struct{})
	go func() {
		for len(got) < producers*perProducer {
			if v, ok := q.Pop(); ok {
				got = append(got, v)
			}
		}
		close(done)
	}()

	wg.Wait()
	<-done

	sort.Ints(got)
	for i := 0; i < producers*perProducer; i++ {
		require.Equal(t, i, got[i])
	}
}
