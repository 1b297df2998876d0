package pipeline

import (
	"context"

	"github.com/architeacher/gpstracker/internal/domain/model"
)

type (
	// Record is the canonical stored row produced by a stage, as read back
	// after the write.
	Record struct {
		Kind     model.TelemetryKind
		DeviceID model.DeviceID
		Data     any
	}

	// Stage is the kind-specific part of message handling. The pipeline owns
	// the order of the steps; a stage only knows its own kind.
	Stage interface {
		Kind() model.TelemetryKind

		// Validate rejects messages that must never be stored. Its errors are
		// not retried.
		Validate(ctx context.Context, msg model.TelemetryMessage) error

		// Persist writes the message and reads the stored row back.
		Persist(ctx context.Context, msg model.TelemetryMessage) (Record, error)

		// CacheKeysFor lists cache keys and "*"-terminated prefixes the record makes stale.
		CacheKeysFor(record Record) []string

		TopicFor(record Record) string
	}

	// Rule inspects a stored record and derives follow-up messages, such as
	// alerts raised by anomaly detection.
	Rule interface {
		Evaluate(ctx context.Context, record Record) []model.TelemetryMessage
	}

	CacheInvalidator interface {
		Invalidate(ctx context.Context, keyOrPrefix string) error
	}
)
