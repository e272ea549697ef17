// Package timeutil provides overflow-safe arithmetic on a wrapping
// millisecond counter.
//
// An Instant is a 32-bit millisecond count that silently wraps from
// math.MaxUint32 back to zero after roughly 49.7 days. Every comparison in
// this package is a single unsigned subtraction: because Go performs uint32
// subtraction modulo 2^32, end-start is the forward distance from start to
// end even when end has wrapped past zero. The result is unambiguous as long
// as the true distance is below 2^31 ms (about 24.8 days).
//
// Do not widen these types to 64 bits unless the clock itself is widened;
// the subtraction must wrap at the same width as the counter.
package timeutil

// Instant is a millisecond timestamp from a wrapping clock.
type Instant uint32

// Duration is a span of milliseconds, the same width as Instant.
type Duration uint32

// Clock is the source of Instants.
type Clock interface {
	Now() Instant
}

// Diff returns the forward distance from start to end.
func Diff(start, end Instant) Duration {
	return Duration(end - start)
}

// Since returns the forward distance from start to the clock's current value.
func Since(clk Clock, start Instant) Duration {
	return Diff(start, clk.Now())
}

// HasElapsed reports whether at least interval has passed since start.
// A zero interval has always elapsed.
func HasElapsed(clk Clock, start Instant, interval Duration) bool {
	return Since(clk, start) >= interval
}

// WithinWindow reports whether less than window has passed since ts.
// At exactly window elapsed it returns false, the complement of HasElapsed.
func WithinWindow(clk Clock, ts Instant, window Duration) bool {
	return Since(clk, ts) < window
}

// Add returns the instant d after i, wrapping.
func (i Instant) Add(d Duration) Instant {
	return i + Instant(d)
}

// Milliseconds returns d as an int64 count of milliseconds.
func (d Duration) Milliseconds() int64 {
	return int64(d)
}
