// Package xlog wraps go.uber.org/zap for the structured logging every
// background thread in this module uses (IPC readers, registry pollers,
// TCP accept loops, dispatch workers).
package xlog

import "go.uber.org/zap"

// Logger is the structured logger passed into every reactor/particle
// constructor. It defaults to a no-op logger so the library stays silent
// unless an embedder wires one up.
type Logger = zap.SugaredLogger

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return zap.NewNop().Sugar()
}

// Named returns l.Named(name), or a fresh no-op logger if l is nil.
func Named(l *Logger, name string) *Logger {
	if l == nil {
		return Nop()
	}
	return l.Named(name)
}
