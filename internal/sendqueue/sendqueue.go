// Package sendqueue paces a text payload out to a channel in small chunks
// without ever blocking the caller.
//
// Enqueue stores the payload and returns immediately. Update, called from
// the host's cooperative loop, sends at most one chunk per call and only
// after ChunkDelay has passed since the previous one. Chunks end on UTF-8
// character boundaries, so a chunk may be shorter than ChunkSize. When the
// last chunk is out the queue calls Channel.End and returns to idle. If the
// channel stops being ready or a send fails, the payload is discarded and
// End is not called.
package sendqueue

import (
	"errors"
	"sync"
	"unicode/utf8"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/hunterino/MiniKeybaord/internal/timeutil"
)

var (
	// ErrNotReady is returned when the channel cannot accept data.
	ErrNotReady = errors.New("sendqueue: channel not ready")
	// ErrBusy is returned while a previous payload is still being sent.
	ErrBusy = errors.New("sendqueue: send in progress")
	// ErrEmpty is returned for a zero-length payload.
	ErrEmpty = errors.New("sendqueue: empty payload")
	// ErrTooLong is returned for payloads over MaxPayloadLength.
	ErrTooLong = errors.New("sendqueue: payload too long")
)

// Abort reasons reported to observers.
const (
	AbortNotReady   = "not_ready"
	AbortSendFailed = "send_failed"
	AbortTimeout    = "timeout"
)

// Channel is the transport the queue drains into.
type Channel interface {
	Ready() bool
	Send(chunk []byte) error
	End() error
}

// Observer receives queue lifecycle events. All methods are called with
// the queue lock held and must not call back into the queue.
type Observer interface {
	Enqueued(err error)
	ChunkSent(n int)
	Completed(total int)
	Aborted(reason string)
}

// Config controls pacing and limits.
type Config struct {
	ChunkSize        int
	ChunkDelay       timeutil.Duration
	MaxPayloadLength int
	// MaxInFlight aborts a payload that has been sending for this long.
	// Zero disables the guard.
	MaxInFlight timeutil.Duration
}

// DefaultConfig sends four bytes every 100 ms, payloads up to 1000 bytes.
var DefaultConfig = Config{
	ChunkSize:        4,
	ChunkDelay:       100,
	MaxPayloadLength: 1000,
}

// Queue holds at most one payload. Safe for concurrent use.
type Queue struct {
	mu            sync.Mutex
	clock         timeutil.Clock
	ch            Channel
	cfg           Config
	log           *logging.Logger
	observer      Observer
	payload       []byte
	cursor        int
	sending       bool
	lastChunkTime timeutil.Instant
	startedAt     timeutil.Instant
}

// New creates an idle queue. A nil logger disables logging.
func New(clk timeutil.Clock, ch Channel, cfg Config, log *logging.Logger) *Queue {
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 1
	}
	return &Queue{
		clock: clk,
		ch:    ch,
		cfg:   cfg,
		log:   log,
	}
}

// SetObserver installs an event observer. Pass nil to remove it.
func (q *Queue) SetObserver(o Observer) {
	q.mu.Lock()
	q.observer = o
	q.mu.Unlock()
}

// Enqueue accepts payload for sending. The queue keeps its own copy.
func (q *Queue) Enqueue(payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	err := q.admit(payload)
	if q.observer != nil {
		q.observer.Enqueued(err)
	}
	if err != nil {
		return err
	}

	q.payload = append([]byte(nil), payload...)
	q.cursor = 0
	q.sending = true
	q.lastChunkTime = q.clock.Now()
	q.startedAt = q.lastChunkTime

	q.debug("Payload queued", zap.Int("length", len(q.payload)))
	return nil
}

func (q *Queue) admit(payload []byte) error {
	switch {
	case !q.ch.Ready():
		return ErrNotReady
	case q.sending:
		return ErrBusy
	case len(payload) == 0:
		return ErrEmpty
	case q.cfg.MaxPayloadLength > 0 && len(payload) > q.cfg.MaxPayloadLength:
		return ErrTooLong
	}
	return nil
}

// Update sends the next chunk if one is due. It never blocks on pacing.
func (q *Queue) Update() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.sending {
		return
	}

	if q.cfg.MaxInFlight > 0 && timeutil.HasElapsed(q.clock, q.startedAt, q.cfg.MaxInFlight) {
		q.abort(AbortTimeout, nil)
		return
	}

	if !timeutil.HasElapsed(q.clock, q.lastChunkTime, q.cfg.ChunkDelay) {
		return
	}

	if !q.ch.Ready() {
		q.abort(AbortNotReady, nil)
		return
	}

	end := q.chunkEnd()
	chunk := q.payload[q.cursor:end]

	if err := q.ch.Send(chunk); err != nil {
		q.abort(AbortSendFailed, err)
		return
	}

	q.cursor = end
	q.lastChunkTime = q.clock.Now()
	if q.observer != nil {
		q.observer.ChunkSent(len(chunk))
	}

	if q.cursor < len(q.payload) {
		return
	}

	total := len(q.payload)
	if err := q.ch.End(); err != nil {
		q.warn("End of transmission failed", zap.Error(err))
	}
	q.reset()
	if q.observer != nil {
		q.observer.Completed(total)
	}
	q.debug("Payload sent", zap.Int("length", total))
}

// chunkEnd returns the end of the next chunk. Chunks never split a UTF-8
// sequence; when ChunkSize is smaller than the next rune the whole rune
// goes out alone.
func (q *Queue) chunkEnd() int {
	end := q.cursor + q.cfg.ChunkSize
	if end >= len(q.payload) {
		return len(q.payload)
	}
	for end > q.cursor && !utf8.RuneStart(q.payload[end]) {
		end--
	}
	if end > q.cursor {
		return end
	}
	_, size := utf8.DecodeRune(q.payload[q.cursor:])
	return q.cursor + size
}

func (q *Queue) abort(reason string, cause error) {
	fields := []zap.Field{
		zap.String("reason", reason),
		zap.Int("sent", q.cursor),
		zap.Int("length", len(q.payload)),
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	q.warn("Send aborted", fields...)

	q.reset()
	if q.observer != nil {
		q.observer.Aborted(reason)
	}
}

func (q *Queue) reset() {
	q.payload = nil
	q.cursor = 0
	q.sending = false
}

// WhenIdle runs fn with the queue locked, so no payload can be enqueued
// or sent until fn returns. It returns ErrBusy without calling fn while a
// payload is in flight. fn must not call back into the queue.
func (q *Queue) WhenIdle(fn func() error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.sending {
		return ErrBusy
	}
	return fn()
}

// IsBusy reports whether a payload is being sent.
func (q *Queue) IsBusy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sending
}

// Progress returns the sent percentage of the current payload, 0 when idle.
func (q *Queue) Progress() uint8 {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.sending {
		return 0
	}
	if len(q.payload) == 0 {
		return 100
	}
	return uint8(q.cursor * 100 / len(q.payload))
}

// Cursor returns the number of bytes already sent.
func (q *Queue) Cursor() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cursor
}

// Len returns the length of the current payload, 0 when idle.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.payload)
}

func (q *Queue) debug(msg string, fields ...zap.Field) {
	if q.log == nil {
		return
	}
	q.log.Debug(msg, append(fields, zap.String("component", "sendqueue"))...)
}

func (q *Queue) warn(msg string, fields ...zap.Field) {
	if q.log == nil {
		return
	}
	q.log.Warn(msg, append(fields, zap.String("component", "sendqueue"))...)
}
