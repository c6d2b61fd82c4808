package ipc

import "time"

// Config configures every directional channel, particle, and reactor in
// this package, following the Option/DefaultOption() shape the teacher's
// concurrency/gopool.Option uses (spec.md's ambient "no CLI, no env vars"
// Config requirement, §6).
type Config struct {
	// RingSize is the power-of-two size of the ring's data region, not
	// counting the fixed shmring.HeaderSize header Open prepends
	// automatically.
	RingSize int
	// MaxPayload bounds any single frame; back buffers are sized to it.
	MaxPayload int
	// BatchSize is the max frames a reader drains before yielding
	// (spec.md §4.7, default 32).
	BatchSize int
	// BackBufCount is the rotating back-buffer pool depth (spec.md §4.7,
	// default 8).
	BackBufCount int
	// AttachRetries / AttachRetryDelay bound the create-or-open race
	// window for a new mapping (spec.md §4.7).
	AttachRetries    int
	AttachRetryDelay time.Duration
	// SpinMax caps the exponential backoff spin count used while
	// busy-waiting on a full/empty ring (spec.md §4.7: "starts at 1,
	// doubles to 4096").
	SpinMax uint64
	// DisposeJoinTimeout bounds how long Dispose waits for a reader
	// thread to exit before giving up on a clean join (spec.md §4.7:
	// "200 ms").
	DisposeJoinTimeout time.Duration
	// RegistryPollInterval is how often a reactor rescans the shared
	// registry for newly attached clients (spec.md §4.8, default 50ms).
	RegistryPollInterval time.Duration
}

// DefaultConfig returns the spec.md-documented defaults.
func DefaultConfig() Config {
	return Config{
		RingSize:             64 * 1024,
		MaxPayload:           4096,
		BatchSize:            32,
		BackBufCount:         8,
		AttachRetries:        20,
		AttachRetryDelay:     25 * time.Millisecond,
		SpinMax:              4096,
		DisposeJoinTimeout:   200 * time.Millisecond,
		RegistryPollInterval: 50 * time.Millisecond,
	}
}
