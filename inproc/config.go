package inproc

// Config configures an in-process particle pair or reactor.
type Config struct {
	// QueueCapacity is the per-direction MPSC queue depth; rounded up to
	// a power of two by queue.NewMPSC.
	QueueCapacity int
	// MaxPayload bounds a single Send call; the in-process substrate has
	// no wire framing, so this is the only size limit it enforces.
	MaxPayload int
	// SpinMax bounds the drain loop's exponential backoff, in
	// runtime.Gosched() iterations. Once the bound is reached the loop
	// keeps spinning at it, checking stop between rounds; it never blocks.
	SpinMax uint64
}

// DefaultConfig returns spec.md-consistent defaults for the in-process
// substrate.
func DefaultConfig() Config {
	return Config{
		QueueCapacity: 1024,
		MaxPayload:    64 * 1024,
		SpinMax:       4096,
	}
}
