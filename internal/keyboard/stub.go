package keyboard

import (
	"errors"
	"sync"
)

// errStubSendFailed is returned by a StubChannel told to fail.
var errStubSendFailed = errors.New("stub: send failure injected")

const stubLogCapacity = 256

// StubChannel is an in-memory agent for host testing and the stub
// keyboard mode. It keeps the most recent frames it was given.
type StubChannel struct {
	mu     sync.Mutex
	ready  bool
	fail   bool
	frames []Frame
}

// NewStubChannel returns a stub that starts ready.
func NewStubChannel() *StubChannel {
	return &StubChannel{ready: true}
}

// SetReady attaches or detaches the simulated agent.
func (s *StubChannel) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

// FailSends makes every subsequent write fail until reset.
func (s *StubChannel) FailSends(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *StubChannel) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *StubChannel) Send(chunk []byte) error { return s.record(textFrame(chunk)) }

func (s *StubChannel) End() error { return s.record(Frame{Type: FrameReleaseAll}) }

func (s *StubChannel) SendCombo(c Combo) error { return s.record(comboFrame(c)) }

func (s *StubChannel) record(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return errStubSendFailed
	}
	if len(s.frames) == stubLogCapacity {
		// Drop the oldest to keep memory bounded.
		s.frames = append(s.frames[:0], s.frames[1:]...)
	}
	s.frames = append(s.frames, f)
	return nil
}

// Frames returns a copy of the recorded frames, oldest first.
func (s *StubChannel) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.frames...)
}

// Typed concatenates the data of every recorded text frame.
func (s *StubChannel) Typed() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []byte
	for _, f := range s.frames {
		if f.Type == FrameText {
			out = append(out, f.Data...)
		}
	}
	return string(out)
}
