// Package clientmap is the mutable, sharded concurrent map reactors index
// per-client particles by (spec.md §4.10's "iterates the client map").
// The teacher's container/strmap is an immutable, build-once map meant for
// route tables fixed at startup; a reactor's client set grows and shrinks
// continuously as peers attach and disconnect, so this is a fresh
// mutable structure instead, sharded the way the teacher's other
// concurrent caches shard: by hashing the key with hash/xfnv and taking a
// lock per shard rather than one lock for the whole map.
package clientmap

import (
	"sync"

	"github.com/particlenet/particle/hash/xfnv"
)

const shardCount = 32

// Map is a sharded concurrent map from client id to value T.
type Map[T any] struct {
	shards [shardCount]shard[T]
}

type shard[T any] struct {
	mu sync.RWMutex
	m  map[string]T
}

// New creates an empty client map.
func New[T any]() *Map[T] {
	cm := &Map[T]{}
	for i := range cm.shards {
		cm.shards[i].m = make(map[string]T)
	}
	return cm
}

func (cm *Map[T]) shardFor(id string) *shard[T] {
	return &cm.shards[xfnv.HashStr(id)%uint64(shardCount)]
}

// Store inserts or overwrites the value for id.
func (cm *Map[T]) Store(id string, v T) {
	s := cm.shardFor(id)
	s.mu.Lock()
	s.m[id] = v
	s.mu.Unlock()
}

// Load returns the value for id, if present.
func (cm *Map[T]) Load(id string) (T, bool) {
	s := cm.shardFor(id)
	s.mu.RLock()
	v, ok := s.m[id]
	s.mu.RUnlock()
	return v, ok
}

// Has reports whether id is present.
func (cm *Map[T]) Has(id string) bool {
	_, ok := cm.Load(id)
	return ok
}

// Delete removes id, returning its value and whether it was present.
func (cm *Map[T]) Delete(id string) (T, bool) {
	s := cm.shardFor(id)
	s.mu.Lock()
	v, ok := s.m[id]
	if ok {
		delete(s.m, id)
	}
	s.mu.Unlock()
	return v, ok
}

// Range calls f for every entry. f runs with no shard lock held (each
// shard is copied first), so it may call back into the map.
// Iteration order is unspecified and a snapshot per shard, so entries
// added or removed concurrently may or may not be observed.
func (cm *Map[T]) Range(f func(id string, v T)) {
	for i := range cm.shards {
		s := &cm.shards[i]
		s.mu.RLock()
		snapshot := make(map[string]T, len(s.m))
		for k, v := range s.m {
			snapshot[k] = v
		}
		s.mu.RUnlock()
		for k, v := range snapshot {
			f(k, v)
		}
	}
}

// Len returns the total number of entries across all shards.
func (cm *Map[T]) Len() int {
	n := 0
	for i := range cm.shards {
		s := &cm.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

// Clear removes every entry.
func (cm *Map[T]) Clear() {
	for i := range cm.shards {
		s := &cm.shards[i]
		s.mu.Lock()
		s.m = make(map[string]T)
		s.mu.Unlock()
	}
}
