package ports

import (
	"context"
	"time"

	"github.com/architeacher/gpstracker/internal/domain/model"
)

type (
	// TelemetryPublisher appends messages to the partitioned telemetry queue.
	TelemetryPublisher interface {
		// Publish routes the message by device ID and returns the partition it
		// was appended to once the queue has durably accepted it.
		Publish(ctx context.Context, msg model.TelemetryMessage) (int, error)

		Partitions() int
	}

	// Delivery is one message handed to a partition worker. Exactly one of
	// Ack or Term settles it; an unsettled delivery is redelivered.
	Delivery interface {
		Message() model.TelemetryMessage
		Partition() int
		Sequence() uint64
		NumDelivered() uint64

		// Context carries the trace context propagated by the publisher.
		Context(ctx context.Context) context.Context

		Ack(ctx context.Context) error
		Term(ctx context.Context, reason string) error
	}

	// TelemetrySource yields the deliveries of a single partition in order.
	TelemetrySource interface {
		// Next blocks until a delivery is available or ctx is done.
		Next(ctx context.Context) (Delivery, error)
		Close() error
	}

	// TelemetrySourceFactory opens the exclusive source of one partition.
	TelemetrySourceFactory interface {
		Source(ctx context.Context, partition int) (TelemetrySource, error)
	}

	// DeadLetter is a message that failed processing. When adding, Sequence
	// is the queue position it was read from; listed letters carry their
	// position in the dead-letter store instead.
	DeadLetter struct {
		Sequence     uint64                 `json:"sequence"`
		Message      model.TelemetryMessage `json:"message"`
		Partition    int                    `json:"partition"`
		Reason       string                 `json:"reason"`
		Attempts     uint64                 `json:"attempts"`
		DeadLetterAt time.Time              `json:"deadLetteredAt"`

		// Payload holds the raw bytes of a message that could not be decoded.
		Payload []byte `json:"payload,omitempty"`
	}

	// DeadLetterStore holds messages removed from the main retry loop.
	DeadLetterStore interface {
		Add(ctx context.Context, letter DeadLetter) error
		List(ctx context.Context, limit int) ([]DeadLetter, error)

		// Replay re-publishes up to limit letters onto their partitions and
		// removes them from the store. It returns how many were replayed.
		Replay(ctx context.Context, limit int) (int, error)
	}

	QueueHealthChecker interface {
		Ping(ctx context.Context) error
	}
)
