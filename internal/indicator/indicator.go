// Package indicator models a single status light: a manual on/off state
// plus an automatic flashing mode that overrides it.
package indicator

import (
	"sync"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/hunterino/MiniKeybaord/internal/timeutil"
)

// DefaultFlashInterval is the time between flash phase flips.
const DefaultFlashInterval timeutil.Duration = 5000

// Indicator is safe for concurrent use.
type Indicator struct {
	mu            sync.Mutex
	clock         timeutil.Clock
	flashInterval timeutil.Duration
	log           *logging.Logger

	manual     bool
	flashing   bool
	flashPhase bool
	lastFlip   timeutil.Instant
}

// New returns an indicator that is off and not flashing.
func New(clk timeutil.Clock, flashInterval timeutil.Duration, log *logging.Logger) *Indicator {
	if flashInterval == 0 {
		flashInterval = DefaultFlashInterval
	}
	return &Indicator{
		clock:         clk,
		flashInterval: flashInterval,
		log:           log,
		lastFlip:      clk.Now(),
	}
}

// Toggle flips the manual state and returns the new value.
func (i *Indicator) Toggle() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.manual = !i.manual
	return i.manual
}

// SetManual sets the manual state.
func (i *Indicator) SetManual(on bool) {
	i.mu.Lock()
	i.manual = on
	i.mu.Unlock()
}

// SetFlashing starts or stops automatic flashing. Starting lights the
// indicator immediately; stopping restores the manual state.
func (i *Indicator) SetFlashing(on bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.flashing == on {
		return
	}
	i.flashing = on
	i.flashPhase = on
	i.lastFlip = i.clock.Now()

	if i.log != nil {
		i.log.Info("Indicator flashing changed",
			zap.String("component", "indicator"),
			zap.Bool("flashing", on))
	}
}

// Update flips the flash phase when an interval has passed.
func (i *Indicator) Update() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.flashing {
		return
	}
	if timeutil.HasElapsed(i.clock, i.lastFlip, i.flashInterval) {
		i.flashPhase = !i.flashPhase
		i.lastFlip = i.clock.Now()
	}
}

// State reports whether the indicator is lit right now.
func (i *Indicator) State() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.flashing {
		return i.flashPhase
	}
	return i.manual
}

// ManualState returns the manual setting regardless of flashing.
func (i *Indicator) ManualState() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.manual
}

// IsFlashing reports whether automatic flashing is active.
func (i *Indicator) IsFlashing() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.flashing
}
