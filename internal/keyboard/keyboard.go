// Package keyboard drives a remote keyboard agent: paced text through a
// send queue and key combinations sent as single frames.
package keyboard

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/hunterino/MiniKeybaord/internal/sendqueue"
	"github.com/hunterino/MiniKeybaord/internal/timeutil"
)

var (
	// ErrNotConnected means no agent is attached.
	ErrNotConnected = sendqueue.ErrNotReady
	// ErrBusy means a text payload is still being typed.
	ErrBusy = sendqueue.ErrBusy
	// ErrSendFailed wraps transport failures.
	ErrSendFailed = errors.New("keyboard: send failed")
)

// Channel is a keyboard transport. Beyond paced text it accepts whole
// combos, whose timing the agent executes itself.
type Channel interface {
	sendqueue.Channel
	SendCombo(c Combo) error
}

// Config for a Manager.
type Config struct {
	DeviceName string
	Queue      sendqueue.Config
}

// DefaultConfig matches the stock device settings.
var DefaultConfig = Config{
	DeviceName: "MiniKeyboard",
	Queue:      sendqueue.DefaultConfig,
}

// Status is a point-in-time view of the manager.
type Status struct {
	DeviceName string `json:"device_name" yaml:"device_name"`
	Connected  bool   `json:"connected" yaml:"connected"`
	Busy       bool   `json:"busy" yaml:"busy"`
	Progress   uint8  `json:"progress" yaml:"progress"`
}

// Manager owns the channel and its send queue.
type Manager struct {
	ch         Channel
	queue      *sendqueue.Queue
	deviceName string
	log        *logging.Logger
}

// NewManager wires a send queue to ch. A nil logger disables logging.
func NewManager(clk timeutil.Clock, ch Channel, cfg Config, log *logging.Logger) *Manager {
	return &Manager{
		ch:         ch,
		queue:      sendqueue.New(clk, ch, cfg.Queue, log),
		deviceName: cfg.DeviceName,
		log:        log,
	}
}

// QueueText starts typing text. It returns the send queue's sentinel
// errors unchanged.
func (m *Manager) QueueText(text string) error {
	return m.queue.Enqueue([]byte(text))
}

// SendCtrlAltDel sends Ctrl+Alt+Delete.
func (m *Manager) SendCtrlAltDel() error {
	return m.SendCombo(CtrlAltDel)
}

// SendSleepCombo sends the Windows sleep key sequence.
func (m *Manager) SendSleepCombo() error {
	return m.SendCombo(SleepCombo)
}

// SendCombo sends c unless the agent is gone or text is in flight. The
// busy check and the send happen under the queue lock, so text cannot
// start in between.
func (m *Manager) SendCombo(c Combo) error {
	if !m.ch.Ready() {
		return ErrNotConnected
	}
	err := m.queue.WhenIdle(func() error {
		if err := m.ch.SendCombo(c); err != nil {
			return fmt.Errorf("%w: %w", ErrSendFailed, err)
		}
		return nil
	})
	if errors.Is(err, ErrBusy) {
		return ErrBusy
	}
	if err != nil {
		if m.log != nil {
			m.log.Warn("Combo send failed",
				zap.String("component", "keyboard"),
				zap.String("combo", c.Name),
				zap.Error(err))
		}
		return err
	}
	if m.log != nil {
		m.log.Info("Combo sent",
			zap.String("component", "keyboard"),
			zap.String("combo", c.Name))
	}
	return nil
}

// Update advances the send queue. Call it from the update loop.
func (m *Manager) Update() {
	m.queue.Update()
}

// IsConnected reports whether an agent is attached.
func (m *Manager) IsConnected() bool { return m.ch.Ready() }

// IsBusy reports whether text is being typed.
func (m *Manager) IsBusy() bool { return m.queue.IsBusy() }

// Progress returns the typing progress in percent.
func (m *Manager) Progress() uint8 { return m.queue.Progress() }

// DeviceName returns the advertised keyboard name.
func (m *Manager) DeviceName() string { return m.deviceName }

// Queue exposes the send queue for observers and status reporting.
func (m *Manager) Queue() *sendqueue.Queue { return m.queue }

// Status snapshots the manager.
func (m *Manager) Status() Status {
	return Status{
		DeviceName: m.deviceName,
		Connected:  m.IsConnected(),
		Busy:       m.IsBusy(),
		Progress:   m.Progress(),
	}
}
