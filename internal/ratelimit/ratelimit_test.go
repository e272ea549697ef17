package ratelimit

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunterino/MiniKeybaord/internal/timeutil"
)

// at converts a signed offset from an arbitrary t=0 into a wrapping Instant,
// so negative offsets land just below the wrap point.
func at(ms int64) timeutil.Instant {
	return timeutil.Instant(uint32(ms))
}

func newTestLimiter(window timeutil.Duration, max int) (*Limiter, *timeutil.ManualClock) {
	clk := timeutil.NewManualClock(0)
	return New(clk, Config{Window: window, MaxRequests: max}, nil), clk
}

func TestFirstRequestAdmitted(t *testing.T) {
	limiter, _ := newTestLimiter(1000, 5)

	assert.True(t, limiter.CheckLimit("192.168.1.100"))
	assert.Equal(t, 1, limiter.TrackedClientCount())
}

func TestAdmitsUpToMaxThenDenies(t *testing.T) {
	for _, max := range []int{1, 3, 5, 10} {
		t.Run(fmt.Sprintf("max=%d", max), func(t *testing.T) {
			limiter, _ := newTestLimiter(1000, max)

			for i := 0; i < max; i++ {
				require.True(t, limiter.CheckLimit("client"), "request %d should pass", i+1)
			}
			assert.False(t, limiter.CheckLimit("client"))
			assert.False(t, limiter.CheckLimit("client"))
		})
	}
}

func TestWindowResetScenario(t *testing.T) {
	limiter, clk := newTestLimiter(1000, 5)
	ip := "10.0.0.7"

	for i := 0; i < 5; i++ {
		require.True(t, limiter.CheckLimit(ip))
	}
	require.False(t, limiter.CheckLimit(ip))

	clk.Set(1100)
	assert.True(t, limiter.CheckLimit(ip))

	// The new window counts from one: four more fit, the sixth is denied.
	for i := 0; i < 4; i++ {
		require.True(t, limiter.CheckLimit(ip))
	}
	assert.False(t, limiter.CheckLimit(ip))
}

func TestWindowResetsExactlyAtBoundary(t *testing.T) {
	limiter, clk := newTestLimiter(1000, 2)

	require.True(t, limiter.CheckLimit("a"))
	require.True(t, limiter.CheckLimit("a"))

	clk.Set(999)
	assert.False(t, limiter.CheckLimit("a"))

	clk.Set(1000)
	assert.True(t, limiter.CheckLimit("a"))
}

func TestResetAfterManyDenials(t *testing.T) {
	limiter, clk := newTestLimiter(1000, 3)

	for i := 0; i < 3; i++ {
		require.True(t, limiter.CheckLimit("a"))
	}
	for i := 0; i < 50; i++ {
		clk.Advance(10)
		require.False(t, limiter.CheckLimit("a"))
	}

	// Denials never moved the window start.
	clk.Set(1000)
	assert.True(t, limiter.CheckLimit("a"))
	assert.Equal(t, 1, limiter.clients["a"].count)
}

func TestFixedWindowAllowsBurstAcrossBoundary(t *testing.T) {
	limiter, clk := newTestLimiter(1000, 5)

	clk.Set(999)
	// First request opens the window at 999.
	for i := 0; i < 5; i++ {
		require.True(t, limiter.CheckLimit("a"))
	}
	clk.Set(1999)
	for i := 0; i < 5; i++ {
		require.True(t, limiter.CheckLimit("a"))
	}
	assert.False(t, limiter.CheckLimit("a"))
}

func TestClientsAreIsolated(t *testing.T) {
	limiter, _ := newTestLimiter(1000, 3)

	for i := 0; i < 3; i++ {
		require.True(t, limiter.CheckLimit("ip1"))
	}
	require.False(t, limiter.CheckLimit("ip1"))

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.CheckLimit("ip2"))
	}
	assert.False(t, limiter.CheckLimit("ip2"))
	assert.Equal(t, 2, limiter.TrackedClientCount())
}

func TestWindowAcrossClockWraparound(t *testing.T) {
	clk := timeutil.NewManualClock(math.MaxUint32 - 499)
	limiter := New(clk, Config{Window: 1000, MaxRequests: 2}, nil)

	require.True(t, limiter.CheckLimit("a"))
	require.True(t, limiter.CheckLimit("a"))

	// 900 ms later the counter has wrapped but the window is still open.
	clk.Advance(900)
	require.Less(t, uint32(clk.Now()), uint32(math.MaxUint32-499))
	assert.False(t, limiter.CheckLimit("a"))

	clk.Advance(100)
	assert.True(t, limiter.CheckLimit("a"))
}

func TestCleanupThrottleScenario(t *testing.T) {
	limiter, clk := newTestLimiter(1000, 5)

	// A client that last opened a window at t=-20000.
	clk.Set(at(-20000))
	require.True(t, limiter.CheckLimit("idle"))
	clk.Set(at(0))

	limiter.Cleanup()
	assert.Equal(t, 1, limiter.TrackedClientCount())

	clk.Set(at(500))
	limiter.Cleanup()
	assert.Equal(t, 1, limiter.TrackedClientCount())

	clk.Set(at(10001))
	limiter.Cleanup()
	assert.Equal(t, 0, limiter.TrackedClientCount())
}

func TestCleanupKeepsRecentClients(t *testing.T) {
	limiter, clk := newTestLimiter(1000, 5)

	require.True(t, limiter.CheckLimit("old"))
	clk.Set(9000)
	require.True(t, limiter.CheckLimit("recent"))

	clk.Set(10001)
	limiter.Cleanup()

	assert.Equal(t, 1, limiter.TrackedClientCount())
	_, ok := limiter.clients["recent"]
	assert.True(t, ok)
}

func TestCleanupIsIdempotentWithinThrottle(t *testing.T) {
	limiter, clk := newTestLimiter(1000, 5)

	clk.Set(5000)
	require.True(t, limiter.CheckLimit("a"))

	clk.Set(10001)
	limiter.Cleanup()
	require.Equal(t, 1, limiter.TrackedClientCount())

	// "a" is now stale, but the next sweep is not due until t=20001.
	for _, ts := range []timeutil.Instant{15500, 18000, 20000} {
		clk.Set(ts)
		limiter.Cleanup()
		assert.Equal(t, 1, limiter.TrackedClientCount(), "t=%d", ts)
	}

	clk.Set(20001)
	limiter.Cleanup()
	assert.Equal(t, 0, limiter.TrackedClientCount())
}

func TestCleanupBoundaryIsStrict(t *testing.T) {
	limiter, clk := newTestLimiter(1000, 5)

	require.True(t, limiter.CheckLimit("a"))
	clk.Set(10000)
	limiter.Cleanup()
	// Idle for exactly ten windows is kept; eviction needs strictly more.
	assert.Equal(t, 1, limiter.TrackedClientCount())
}

func TestResetClearsAllClients(t *testing.T) {
	limiter, _ := newTestLimiter(1000, 1)

	for i := 0; i < 20; i++ {
		limiter.CheckLimit(fmt.Sprintf("10.0.0.%d", i))
	}
	require.Equal(t, 20, limiter.TrackedClientCount())
	require.False(t, limiter.CheckLimit("10.0.0.1"))

	limiter.Reset()
	assert.Equal(t, 0, limiter.TrackedClientCount())
	assert.True(t, limiter.CheckLimit("10.0.0.1"))
}

func TestNewClampsMaxRequests(t *testing.T) {
	limiter, _ := newTestLimiter(1000, 0)

	assert.Equal(t, 1, limiter.MaxRequests())
	assert.Equal(t, timeutil.Duration(1000), limiter.Window())
	assert.True(t, limiter.CheckLimit("a"))
	assert.False(t, limiter.CheckLimit("a"))
}

func TestNewClampsOversizedWindow(t *testing.T) {
	// Ten of these windows would wrap to a 4 ms retention.
	limiter, clk := newTestLimiter(429_496_730, 5)

	assert.Equal(t, MaxWindow, limiter.Window())
	assert.GreaterOrEqual(t, uint64(limiter.retention()), uint64(MaxWindow))

	require.True(t, limiter.CheckLimit("a"))
	clk.Advance(1000)
	limiter.Cleanup()
	assert.Equal(t, 1, limiter.TrackedClientCount(), "client evicted after one second")

	limiter, _ = newTestLimiter(math.MaxUint32, 5)
	assert.Equal(t, MaxWindow, limiter.Window())
}
