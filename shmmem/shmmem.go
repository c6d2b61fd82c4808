// Package shmmem implements the shared-memory region and cross-process
// mutex primitives the IPC substrate is built on (spec.md §4.7–§4.8).
//
// Grounded on other_examples/cbcf8a89_gregbostrom-shmx__shmx.go's
// unix.Open/unix.Ftruncate/unix.Mmap/unix.Munmap sequence for mapping a
// named region, generalized from that file's single master/slave pair
// into the create-or-open-with-retry semantics spec.md §4.7 calls for
// ("Creation creates or opens the mapping with retries"). Unix has no
// native named mutex or named-kernel-object namespace the way Windows
// does; spec.md §6's `Local\`/`Global\` namespace split is emulated here
// with two backing directories (os.TempDir() for "local", /dev/shm when
// present for "global"), and the named mutex is
// emulated with golang.org/x/sys/unix.Flock on a sidecar lock file —
// this is the same flock-based pattern used for single-writer coordination
// throughout the Unix systems-programming examples in the retrieval pack.
package shmmem

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// Namespace selects where named mappings live, emulating spec.md §6's
// Local\ vs Global\ prefix.
type Namespace int

const (
	// Local places names under os.TempDir(), which is not a per-user
	// directory.
	Local Namespace = iota
	// Global scopes names system-wide (/dev/shm, or os.TempDir() as a
	// fallback on platforms without a shared-memory tmpfs).
	Global
)

func baseDir(ns Namespace) string {
	if ns == Global {
		if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
			return "/dev/shm"
		}
	}
	return os.TempDir()
}

// Path resolves a logical mapping name to a filesystem path under the
// given namespace.
func Path(ns Namespace, name string) string {
	return filepath.Join(baseDir(ns), "particle-ipc-"+name+".map")
}

// Map is one named, memory-mapped region shared across processes.
type Map struct {
	fd   int
	path string
	Data []byte
}

// CreateOrOpen maps a region of exactly size bytes at name, creating it
// if absent. If another process is racing to create the same mapping,
// retries up to attempts times with delay between attempts (spec.md
// §4.7's "Cross-process attach race" failure kind maps to exhausting
// these retries).
func CreateOrOpen(ns Namespace, name string, size int, attempts int, delay time.Duration) (*Map, error) {
	path := Path(ns, name)

	var lastErr error
	for i := 0; i < attempts; i++ {
		m, err := tryOpen(path, size)
		if err == nil {
			return m, nil
		}
		lastErr = err
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("shmmem: attach race on %s: %w", name, lastErr)
}

func tryOpen(path string, size int) (*Map, error) {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	st, err := unix.Fstat(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if int(st.Size) < size {
		if err := unix.Ftruncate(fd, int64(size)); err != nil {
			_ = unix.Close(fd)
			return nil, err
		}
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	return &Map{fd: fd, path: path, Data: data}, nil
}

// Close unmaps the region and closes the backing descriptor. Does not
// delete the backing file — the mapping remains attachable by other
// processes until explicitly removed.
func (m *Map) Close() error {
	if m == nil {
		return nil
	}
	var err error
	if m.Data != nil {
		err = unix.Munmap(m.Data)
		m.Data = nil
	}
	if m.fd != 0 {
		_ = unix.Close(m.fd)
		m.fd = 0
	}
	return err
}

// Remove unlinks the backing file. Safe to call after Close; any process
// still holding the mapping keeps its pages until it also unmaps.
func Remove(ns Namespace, name string) error {
	return os.Remove(Path(ns, name))
}

// Mutex is a cross-process advisory lock emulating spec.md §4.8's named
// mutex (used to serialize registry appends), built on unix.Flock over a
// sidecar lock file. Flock is automatically released if the holding
// process dies, which is the Unix analogue of spec.md §4.8's "mutex
// abandoned by a dead peer -> recovered and continued."
type Mutex struct {
	fd int
}

// OpenMutex creates or opens the named mutex's backing lock file.
func OpenMutex(ns Namespace, name string) (*Mutex, error) {
	path := Path(ns, name) + ".mtx"
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shmmem: open mutex %s: %w", name, err)
	}
	return &Mutex{fd: fd}, nil
}

// Lock blocks until the exclusive lock is acquired.
func (m *Mutex) Lock() error {
	return unix.Flock(m.fd, unix.LOCK_EX)
}

// Unlock releases the lock.
func (m *Mutex) Unlock() error {
	return unix.Flock(m.fd, unix.LOCK_UN)
}

// Close closes the lock file descriptor.
func (m *Mutex) Close() error {
	if m == nil || m.fd == 0 {
		return nil
	}
	err := unix.Close(m.fd)
	m.fd = 0
	return err
}
