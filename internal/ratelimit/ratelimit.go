// Package ratelimit implements per-client fixed-window admission control.
//
// Each client key gets a counting window that starts at its first request.
// Up to MaxRequests requests are admitted until Window has elapsed since the
// window start; the next request after that opens a fresh window with a
// count of one. This is a fixed window, not a sliding log: a client can be
// admitted up to 2*MaxRequests times across a window boundary.
//
// Memory is bounded by the number of recently active clients. Cleanup evicts
// clients idle for more than RetentionWindows windows and throttles itself
// to one sweep per retention period.
package ratelimit

import (
	"math"
	"sync"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/hunterino/MiniKeybaord/internal/timeutil"
)

// RetentionWindows is the idle period, in windows, after which a client
// record is evicted. It is also the minimum spacing between cleanup sweeps.
const RetentionWindows = 10

// MaxWindow is the longest window whose retention period still fits the
// wrapping clock. Longer windows are clamped.
const MaxWindow = timeutil.Duration(math.MaxUint32 / RetentionWindows)

// Config controls the limiter.
type Config struct {
	Window      timeutil.Duration
	MaxRequests int
}

// DefaultConfig allows five requests per second per client.
var DefaultConfig = Config{
	Window:      1000,
	MaxRequests: 5,
}

type clientRecord struct {
	windowStart timeutil.Instant
	count       int
}

// Limiter tracks admissions per client key. Safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	clock       timeutil.Clock
	cfg         Config
	clients     map[string]*clientRecord
	lastCleanup timeutil.Instant
	log         *logging.Logger
}

// New creates a Limiter. A nil logger disables logging.
func New(clk timeutil.Clock, cfg Config, log *logging.Logger) *Limiter {
	if cfg.MaxRequests < 1 {
		cfg.MaxRequests = 1
	}
	if cfg.Window > MaxWindow {
		cfg.Window = MaxWindow
	}
	return &Limiter{
		clock:       clk,
		cfg:         cfg,
		clients:     make(map[string]*clientRecord),
		lastCleanup: clk.Now(),
		log:         log,
	}
}

// CheckLimit records a request from key and reports whether it is admitted.
// A denied request leaves the client's state untouched.
func (l *Limiter) CheckLimit(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	rec, ok := l.clients[key]
	if !ok {
		l.clients[key] = &clientRecord{windowStart: now, count: 1}
		return true
	}

	if timeutil.Diff(rec.windowStart, now) >= l.cfg.Window {
		rec.windowStart = now
		rec.count = 1
		return true
	}

	if rec.count >= l.cfg.MaxRequests {
		return false
	}

	rec.count++
	return true
}

// Cleanup evicts clients idle for longer than the retention period. It does
// nothing unless a full retention period has passed since the last sweep, so
// it is cheap to call often.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	retention := l.retention()
	if !timeutil.HasElapsed(l.clock, l.lastCleanup, retention) {
		return
	}

	now := l.clock.Now()
	l.lastCleanup = now

	evicted := 0
	for key, rec := range l.clients {
		if timeutil.Diff(rec.windowStart, now) > retention {
			delete(l.clients, key)
			evicted++
		}
	}

	if l.log != nil && evicted > 0 {
		l.log.Debug("Evicted idle rate limit clients",
			zap.String("component", "ratelimit"),
			zap.Int("evicted", evicted),
			zap.Int("tracked", len(l.clients)))
	}
}

// Reset forgets every client.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clients = make(map[string]*clientRecord)
}

// TrackedClientCount returns the number of client records held.
func (l *Limiter) TrackedClientCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Window returns the configured window length.
func (l *Limiter) Window() timeutil.Duration {
	return l.cfg.Window
}

// MaxRequests returns the configured per-window admission count.
func (l *Limiter) MaxRequests() int {
	return l.cfg.MaxRequests
}

func (l *Limiter) retention() timeutil.Duration {
	return l.cfg.Window * RetentionWindows
}
