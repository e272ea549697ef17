package timeutil

import (
	"sync"
	"time"
)

// SystemClock counts milliseconds since it was created using the runtime's
// monotonic clock, truncated to 32 bits so it wraps like a hardware counter.
type SystemClock struct {
	origin time.Time
	offset Instant
}

// NewSystemClock returns a clock that reads zero now.
func NewSystemClock() *SystemClock {
	return &SystemClock{origin: time.Now()}
}

// NewSystemClockAt returns a clock that reads start now. Starting close to
// the wrap point exercises wraparound in soak runs without waiting 49 days.
func NewSystemClockAt(start Instant) *SystemClock {
	return &SystemClock{origin: time.Now(), offset: start}
}

// Now returns the current wrapping millisecond count.
func (c *SystemClock) Now() Instant {
	ms := time.Since(c.origin).Milliseconds()
	return c.offset + Instant(uint32(ms))
}

// ManualClock is a Clock whose value only changes when told to.
//
// Thread-safe: tests drive it from one goroutine while the code under test
// may read it from another.
type ManualClock struct {
	mu  sync.Mutex
	now Instant
}

// NewManualClock creates a ManualClock reading start.
func NewManualClock(start Instant) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() Instant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d, wrapping past the maximum value.
func (c *ManualClock) Advance(d Duration) {
	c.mu.Lock()
	c.now += Instant(d)
	c.mu.Unlock()
}

// Set jumps the clock to an absolute value.
func (c *ManualClock) Set(i Instant) {
	c.mu.Lock()
	c.now = i
	c.mu.Unlock()
}
