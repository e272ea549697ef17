// Package loop runs the cooperative update loop: one goroutine that ticks
// every registered component in order. Components must not block.
package loop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/hunterino/MiniKeybaord/internal/timeutil"
)

// DefaultTick is the pause between iterations.
const DefaultTick = 10 * time.Millisecond

// Updater is advanced once per iteration.
type Updater interface {
	Update()
}

// UpdaterFunc adapts a function to Updater.
type UpdaterFunc func()

func (f UpdaterFunc) Update() { f() }

type namedUpdater struct {
	name string
	u    Updater
}

// Loop is configured before Run and must not be modified afterwards.
type Loop struct {
	tick     time.Duration
	log      *logging.Logger
	updaters []namedUpdater

	mu         sync.Mutex
	iterations uint64
}

// New creates a loop. A non-positive tick uses DefaultTick.
func New(tick time.Duration, log *logging.Logger) *Loop {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Loop{tick: tick, log: log}
}

// Register appends u; updaters run in registration order.
func (l *Loop) Register(name string, u Updater) {
	l.updaters = append(l.updaters, namedUpdater{name: name, u: u})
}

// Step runs one iteration. A panicking updater is logged and skipped so
// the others still run.
func (l *Loop) Step() {
	for _, nu := range l.updaters {
		l.safeUpdate(nu)
	}
	l.mu.Lock()
	l.iterations++
	l.mu.Unlock()
}

func (l *Loop) safeUpdate(nu namedUpdater) {
	defer func() {
		if r := recover(); r != nil && l.log != nil {
			l.log.Error("Updater panicked",
				zap.String("component", "loop"),
				zap.String("updater", nu.name),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	nu.u.Update()
}

// Iterations returns how many steps have completed.
func (l *Loop) Iterations() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.iterations
}

// Run steps the loop every tick until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	if l.log != nil {
		names := make([]string, 0, len(l.updaters))
		for _, nu := range l.updaters {
			names = append(names, nu.name)
		}
		l.log.Info("Update loop started",
			zap.String("component", "loop"),
			zap.Duration("tick", l.tick),
			zap.Strings("updaters", names))
	}

	for {
		select {
		case <-ctx.Done():
			if l.log != nil {
				l.log.Info("Update loop stopped", zap.String("component", "loop"))
			}
			return ctx.Err()
		case <-ticker.C:
			l.Step()
		}
	}
}

// Every returns an Updater that calls fn at most once per interval,
// starting one interval after creation.
func Every(clk timeutil.Clock, interval timeutil.Duration, fn func()) Updater {
	return &throttled{clock: clk, interval: interval, last: clk.Now(), fn: fn}
}

type throttled struct {
	clock    timeutil.Clock
	interval timeutil.Duration
	last     timeutil.Instant
	fn       func()
}

func (t *throttled) Update() {
	if !timeutil.HasElapsed(t.clock, t.last, t.interval) {
		return
	}
	t.last = t.clock.Now()
	t.fn()
}

// LinkState is the part of the link monitor the indicator follows.
type LinkState interface {
	IsDisconnectedLongTerm() bool
}

// Flasher is the part of the indicator driven by the link.
type Flasher interface {
	SetFlashing(on bool)
}

// FlashOnOutage makes f flash while link reports a long-term outage and
// go steady once it recovers.
func FlashOnOutage(link LinkState, f Flasher) Updater {
	return UpdaterFunc(func() {
		f.SetFlashing(link.IsDisconnectedLongTerm())
	})
}
