// Package linkmon watches a connectivity probe at a throttled rate and
// reports long-lived outages.
package linkmon

import (
	"sync"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/hunterino/MiniKeybaord/internal/timeutil"
)

// Probe reports whether the link is up right now.
type Probe func() bool

// Config for a Monitor.
type Config struct {
	CheckInterval timeutil.Duration
	AlertAfter    timeutil.Duration
}

// DefaultConfig polls once a second and alerts after a minute down.
var DefaultConfig = Config{
	CheckInterval: 1000,
	AlertAfter:    60_000,
}

// Link states reported by StatusString.
const (
	StatusConnected      = "connected"
	StatusDisconnected   = "disconnected"
	StatusNeverConnected = "never_connected"
)

// Monitor is safe for concurrent use.
type Monitor struct {
	mu    sync.Mutex
	clock timeutil.Clock
	probe Probe
	cfg   Config
	name  string
	log   *logging.Logger

	polled        bool
	lastCheck     timeutil.Instant
	connected     bool
	everConnected bool
	downKnown     bool
	downSince     timeutil.Instant
}

// New creates a monitor for the named link. It reads the probe on the
// first Update and then at most once per CheckInterval.
func New(clk timeutil.Clock, name string, probe Probe, cfg Config, log *logging.Logger) *Monitor {
	return &Monitor{
		clock: clk,
		probe: probe,
		cfg:   cfg,
		name:  name,
		log:   log,
	}
}

// Update polls the probe if a check is due.
func (m *Monitor) Update() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.polled && !timeutil.HasElapsed(m.clock, m.lastCheck, m.cfg.CheckInterval) {
		return
	}
	now := m.clock.Now()
	m.polled = true
	m.lastCheck = now

	up := m.probe()
	switch {
	case up && !m.connected:
		m.connected = true
		m.everConnected = true
		m.downKnown = false
		m.logInfo("Link up")
	case !up && m.connected:
		m.connected = false
		m.downKnown = true
		m.downSince = now
		m.logWarn("Link down")
	case !up && !m.downKnown:
		// Down since startup.
		m.downKnown = true
		m.downSince = now
	}
}

// IsConnected returns the last polled state.
func (m *Monitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// IsDisconnectedLongTerm reports an outage of at least AlertAfter.
func (m *Monitor) IsDisconnectedLongTerm() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected || !m.downKnown {
		return false
	}
	return timeutil.HasElapsed(m.clock, m.downSince, m.cfg.AlertAfter)
}

// DisconnectedFor returns how long the link has been down, zero if up.
func (m *Monitor) DisconnectedFor() timeutil.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected || !m.downKnown {
		return 0
	}
	return timeutil.Since(m.clock, m.downSince)
}

// StatusString describes the link for status output.
func (m *Monitor) StatusString() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.connected:
		return StatusConnected
	case m.everConnected:
		return StatusDisconnected
	default:
		return StatusNeverConnected
	}
}

func (m *Monitor) logInfo(msg string) {
	if m.log != nil {
		m.log.Info(msg, zap.String("component", "linkmon"), zap.String("link", m.name))
	}
}

func (m *Monitor) logWarn(msg string) {
	if m.log != nil {
		m.log.Warn(msg, zap.String("component", "linkmon"), zap.String("link", m.name))
	}
}
