package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	HeaderKind          = "Telemetry-Kind"
	HeaderDeviceID      = "Device-Id"
	HeaderCorrelationID = "Correlation-Id"

	HeaderDeadLetterReason    = "Dead-Letter-Reason"
	HeaderDeadLetterAttempts  = "Dead-Letter-Attempts"
	HeaderDeadLetterPartition = "Dead-Letter-Partition"
	HeaderDeadLetterSequence  = "Dead-Letter-Sequence"
	HeaderDeadLetterAt        = "Dead-Letter-At"
)

// encodeMessage builds the queue message and injects the caller's trace context.
func encodeMessage(ctx context.Context, subject string, msg model.TelemetryMessage) (*nats.Msg, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding telemetry message %s: %w", msg.ID, err)
	}

	natsMsg := nats.NewMsg(subject)
	natsMsg.Data = data
	natsMsg.Header.Set(HeaderKind, msg.Kind.String())
	natsMsg.Header.Set(HeaderDeviceID, msg.DeviceID.String())

	if msg.CorrelationID != "" {
		natsMsg.Header.Set(HeaderCorrelationID, msg.CorrelationID)
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(http.Header(natsMsg.Header)))

	return natsMsg, nil
}

func decodeMessage(data []byte) (model.TelemetryMessage, error) {
	var msg model.TelemetryMessage

	if err := json.Unmarshal(data, &msg); err != nil {
		return model.TelemetryMessage{}, fmt.Errorf("%w: %w", model.ErrInvalidMessage, err)
	}

	if err := msg.Validate(); err != nil {
		return model.TelemetryMessage{}, err
	}

	return msg, nil
}

func extractTraceContext(ctx context.Context, header nats.Header) context.Context {
	if header == nil {
		return ctx
	}

	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(http.Header(header)))
}

func headerUint(header nats.Header, key string) uint64 {
	value, err := strconv.ParseUint(header.Get(key), 10, 64)
	if err != nil {
		return 0
	}

	return value
}
