package ipc

import (
	"bytes"
	"strings"
	"time"

	"github.com/particlenet/particle/shmmem"
	"github.com/particlenet/particle/xerr"
)

// RegistrySize is the fixed size of the well-known registry mapping
// (spec.md §4.8: "one well-known 64 KiB mapping").
const RegistrySize = 64 * 1024

// Registry is the shared append-only list of attached client
// identifiers, guarded by a named cross-process mutex.
type Registry struct {
	mp *shmmem.Map
	mu *shmmem.Mutex
}

// OpenRegistry creates or opens the well-known registry mapping for base.
func OpenRegistry(ns shmmem.Namespace, base string, attempts int, delay time.Duration) (*Registry, error) {
	name := base + ".registry"
	mp, err := shmmem.CreateOrOpen(ns, name, RegistrySize, attempts, delay)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindAttachRace, "ipc.OpenRegistry", err)
	}
	mu, err := shmmem.OpenMutex(ns, name)
	if err != nil {
		_ = mp.Close()
		return nil, xerr.Wrap(xerr.KindAttachRace, "ipc.OpenRegistry", err)
	}
	return &Registry{mp: mp, mu: mu}, nil
}

// Append writes id plus a trailing newline at the first free byte in the
// region (spec.md §4.8: "read the region to find the first null byte,
// append ... if it fits"). Returns KindExhausted if the registry is full.
func (r *Registry) Append(id string) error {
	if err := r.mu.Lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()

	idx := bytes.IndexByte(r.mp.Data, 0)
	if idx < 0 {
		return xerr.New(xerr.KindExhausted, "ipc.Registry.Append")
	}
	entry := id + "\n"
	if idx+len(entry) > len(r.mp.Data) {
		return xerr.New(xerr.KindExhausted, "ipc.Registry.Append")
	}
	copy(r.mp.Data[idx:], entry)
	return nil
}

// Snapshot returns every identifier currently committed to the registry,
// in append order.
func (r *Registry) Snapshot() ([]string, error) {
	if err := r.mu.Lock(); err != nil {
		return nil, err
	}
	idx := bytes.IndexByte(r.mp.Data, 0)
	if idx < 0 {
		idx = len(r.mp.Data)
	}
	buf := make([]byte, idx)
	copy(buf, r.mp.Data[:idx])
	_ = r.mu.Unlock()

	s := strings.TrimRight(string(buf), "\n")
	if s == "" {
		return nil, nil
	}
	return strings.Split(s, "\n"), nil
}

// Close releases the registry mapping and mutex handle.
func (r *Registry) Close() error {
	err1 := r.mp.Close()
	err2 := r.mu.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
