package linkmon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunterino/MiniKeybaord/internal/timeutil"
)

type fakeProbe struct {
	up    bool
	polls int
}

func (p *fakeProbe) read() bool {
	p.polls++
	return p.up
}

func newTestMonitor(up bool) (*Monitor, *fakeProbe, *timeutil.ManualClock) {
	clk := timeutil.NewManualClock(0)
	p := &fakeProbe{up: up}
	return New(clk, "agent", p.read, Config{CheckInterval: 1000, AlertAfter: 60_000}, nil), p, clk
}

func TestPollsAreThrottled(t *testing.T) {
	m, p, clk := newTestMonitor(true)

	m.Update()
	require.Equal(t, 1, p.polls)
	assert.True(t, m.IsConnected())

	for _, ts := range []timeutil.Instant{1, 500, 999} {
		clk.Set(ts)
		m.Update()
	}
	assert.Equal(t, 1, p.polls)

	clk.Set(1000)
	m.Update()
	assert.Equal(t, 2, p.polls)
}

func TestTransitionsTracked(t *testing.T) {
	m, p, clk := newTestMonitor(false)

	m.Update()
	assert.False(t, m.IsConnected())
	assert.Equal(t, StatusNeverConnected, m.StatusString())

	p.up = true
	clk.Set(1000)
	m.Update()
	assert.True(t, m.IsConnected())
	assert.Equal(t, StatusConnected, m.StatusString())
	assert.Equal(t, timeutil.Duration(0), m.DisconnectedFor())

	p.up = false
	clk.Set(2000)
	m.Update()
	assert.False(t, m.IsConnected())
	assert.Equal(t, StatusDisconnected, m.StatusString())

	clk.Set(5000)
	assert.Equal(t, timeutil.Duration(3000), m.DisconnectedFor())
}

func TestLongTermDisconnect(t *testing.T) {
	m, p, clk := newTestMonitor(true)
	m.Update()
	assert.False(t, m.IsDisconnectedLongTerm())

	p.up = false
	clk.Set(1000)
	m.Update()

	clk.Set(60_999)
	assert.False(t, m.IsDisconnectedLongTerm())
	clk.Set(61_000)
	assert.True(t, m.IsDisconnectedLongTerm())

	p.up = true
	clk.Set(62_000)
	m.Update()
	assert.False(t, m.IsDisconnectedLongTerm())
}

func TestDownSinceStartupCountsAsOutage(t *testing.T) {
	m, _, clk := newTestMonitor(false)

	assert.False(t, m.IsDisconnectedLongTerm(), "not seen down before the first poll")
	m.Update()

	clk.Set(60_000)
	assert.True(t, m.IsDisconnectedLongTerm())
}

func TestOutageAcrossWraparound(t *testing.T) {
	clk := timeutil.NewManualClock(4294960000)
	p := &fakeProbe{up: false}
	m := New(clk, "agent", p.read, Config{CheckInterval: 1000, AlertAfter: 10_000}, nil)

	m.Update()
	clk.Advance(9_999)
	assert.False(t, m.IsDisconnectedLongTerm())
	clk.Advance(1)
	assert.True(t, m.IsDisconnectedLongTerm())
}
