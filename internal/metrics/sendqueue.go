package metrics

import (
	"errors"

	"github.com/hunterino/MiniKeybaord/internal/observability"
	"github.com/hunterino/MiniKeybaord/internal/sendqueue"
)

// QueueObserver emits send queue events as telemetry.
type QueueObserver struct{}

var _ sendqueue.Observer = QueueObserver{}

func (QueueObserver) Enqueued(err error) {
	counter(SendQueueEnqueueTotal, map[string]string{"result": enqueueResult(err)})
}

func (QueueObserver) ChunkSent(n int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(SendQueueChunksTotal, 1, nil)
	_ = observability.TelemetrySystem.Counter(SendQueueBytesTotal, float64(n), nil)
}

func (QueueObserver) Completed(int) {
	counter(SendQueueCompletedTotal, nil)
}

func (QueueObserver) Aborted(reason string) {
	counter(SendQueueAbortsTotal, map[string]string{"reason": reason})
}

func enqueueResult(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, sendqueue.ErrNotReady):
		return "not_ready"
	case errors.Is(err, sendqueue.ErrBusy):
		return "busy"
	case errors.Is(err, sendqueue.ErrEmpty):
		return "empty"
	case errors.Is(err, sendqueue.ErrTooLong):
		return "too_long"
	default:
		return "error"
	}
}

func counter(name string, labels map[string]string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(name, 1, labels)
	}
}
