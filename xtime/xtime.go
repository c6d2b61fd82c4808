// Package xtime supplies a low-overhead cached wall clock, backed by
// github.com/agilira/go-timecache instead of calling time.Now() on every
// read. Substrate constructors accept a *Clock but do not read it: ring
// heartbeats are tick counters kept by shmring.
package xtime

import (
	"time"

	"github.com/agilira/go-timecache"
)

// Clock is a cached, millisecond-resolution wall clock.
type Clock struct {
	tc *timecache.TimeCache
}

// NewClock starts a clock refreshed at the given resolution.
func NewClock(resolution time.Duration) *Clock {
	return &Clock{tc: timecache.NewWithResolution(resolution)}
}

// DefaultClock returns the package-wide shared clock instance.
func DefaultClock() *Clock {
	return &Clock{tc: timecache.DefaultCache()}
}

// Now returns the last-cached wall-clock time.
func (c *Clock) Now() time.Time {
	return c.tc.CachedTime()
}

// UnixNano returns the last-cached time as a heartbeat tick value, suitable
// for storing in a ring header's heartbeat field.
func (c *Clock) UnixNano() uint64 {
	return uint64(c.Now().UnixNano())
}

// Stop releases the clock's background refresh goroutine.
func (c *Clock) Stop() {
	if c != nil && c.tc != nil {
		c.tc.Stop()
	}
}
