package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/architeacher/gpstracker/pkg/metrics"
	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/architeacher/gpstracker/internal/pipeline"

const (
	outcomeProcessed    = "processed"
	outcomeDeadLettered = "dead_lettered"
	outcomeAbandoned    = "abandoned"
)

type Handler interface {
	Handle(ctx context.Context, msg model.TelemetryMessage) error
}

// Worker drains one partition. It handles a single message at a time, so
// messages of a device are stored in the order they were queued.
type Worker struct {
	partition   int
	source      ports.TelemetrySource
	handler     Handler
	deadLetters ports.DeadLetterStore
	config      config.Consumer
	metrics     metrics.Client
	tracer      otelTrace.Tracer
	logger      logger.Logger
}

func NewWorker(
	partition int,
	source ports.TelemetrySource,
	handler Handler,
	deadLetters ports.DeadLetterStore,
	cfg config.Consumer,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
	log logger.Logger,
) *Worker {
	return &Worker{
		partition:   partition,
		source:      source,
		handler:     handler,
		deadLetters: deadLetters,
		config:      cfg,
		metrics:     metricsClient,
		tracer:      tracerProvider.Tracer(instrumentationName),
		logger:      logger.Logger{Logger: log.Component("partition-worker").With().Int("partition", partition).Logger()},
	}
}

// Run processes deliveries until ctx is canceled. A message that is in
// flight at shutdown is left unsettled and will be redelivered.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Msg("partition worker started")
	defer w.logger.Info().Msg("partition worker stopped")

	for {
		delivery, err := w.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			w.logger.Error().Err(err).Msg("failed to fetch next delivery")

			if !sleep(ctx, w.config.Backoff.MaxDelay) {
				return nil
			}

			continue
		}

		w.process(ctx, delivery)
	}
}

func (w *Worker) process(ctx context.Context, delivery ports.Delivery) {
	msg := delivery.Message()
	start := time.Now()

	ctx = delivery.Context(ctx)
	if msg.CorrelationID != "" {
		ctx = logger.ContextWithCorrelationID(ctx, msg.CorrelationID)
	}

	ctx, span := w.tracer.Start(ctx, "telemetry.process",
		otelTrace.WithSpanKind(otelTrace.SpanKindConsumer),
		otelTrace.WithAttributes(
			attribute.String("telemetry.kind", msg.Kind.String()),
			attribute.Int64("telemetry.device_id", msg.DeviceID.Int64()),
			attribute.Int("telemetry.partition", w.partition),
			attribute.Int64("telemetry.sequence", int64(delivery.Sequence())),
		),
	)
	defer span.End()

	l := w.logger.WithContext(ctx)
	attempts, err := w.handle(ctx, msg)

	// Settling must survive shutdown once the outcome is known.
	settleCtx := context.WithoutCancel(ctx)
	outcome := outcomeProcessed

	switch {
	case err == nil:
		if ackErr := delivery.Ack(settleCtx); ackErr != nil {
			l.Error().Err(ackErr).Str("message_id", msg.ID).Msg("failed to acknowledge message")
		}
	case ctx.Err() != nil:
		outcome = outcomeAbandoned
		l.Info().Str("message_id", msg.ID).Msg("shutting down, leaving message for redelivery")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		outcome = outcomeDeadLettered
		if !w.deadLetter(settleCtx, delivery, attempts, err) {
			outcome = outcomeAbandoned
		}
	}

	kind := attribute.String("kind", msg.Kind.String())
	w.metrics.Inc(ctx, metrics.TelemetryProcessedTotal, int64(1), kind, attribute.String("outcome", outcome))
	w.metrics.Inc(ctx, metrics.TelemetryProcessingSeconds, time.Since(start).Seconds(), kind)
}

// handle runs the handler with retries for transient failures. The whole
// retry loop shares one processing deadline.
func (w *Worker) handle(ctx context.Context, msg model.TelemetryMessage) (uint64, error) {
	if w.config.ProcessingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.ProcessingTimeout)
		defer cancel()
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = w.config.Backoff.BaseDelay
	expBackoff.Multiplier = w.config.Backoff.Multiplier
	expBackoff.RandomizationFactor = w.config.Backoff.Jitter
	expBackoff.MaxInterval = w.config.Backoff.MaxDelay

	var attempts uint64

	operation := func() (struct{}, error) {
		attempts++
		if attempts > 1 {
			w.metrics.Inc(ctx, metrics.TelemetryRetriesTotal, int64(1), attribute.String("kind", msg.Kind.String()))
		}

		err := w.handler.Handle(ctx, msg)
		if err == nil {
			return struct{}{}, nil
		}

		if model.IsTransient(err) {
			l := w.logger.WithContext(ctx)
			l.Warn().Err(err).Uint64("attempt", attempts).Str("message_id", msg.ID).Msg("transient failure, retrying")

			return struct{}{}, err
		}

		return struct{}{}, backoff.Permanent(err)
	}

	_, err := backoff.Retry(
		ctx,
		operation,
		backoff.WithMaxTries(w.config.MaxRetries+1),
		backoff.WithBackOff(expBackoff),
	)

	return attempts, err
}

// deadLetter parks the message and terminates its delivery. If the dead-letter
// write fails the delivery is left unsettled so the queue redelivers it.
func (w *Worker) deadLetter(ctx context.Context, delivery ports.Delivery, attempts uint64, cause error) bool {
	msg := delivery.Message()
	l := w.logger.WithContext(ctx)

	reason := cause.Error()
	if model.IsTransient(cause) || errors.Is(cause, context.DeadlineExceeded) {
		reason = fmt.Sprintf("retries exhausted after %d attempts: %s", attempts, cause)
	}

	letter := ports.DeadLetter{
		Sequence:     delivery.Sequence(),
		Message:      msg,
		Partition:    w.partition,
		Reason:       reason,
		Attempts:     attempts,
		DeadLetterAt: time.Now().UTC(),
	}

	if err := w.deadLetters.Add(ctx, letter); err != nil {
		l.Error().Err(err).Str("message_id", msg.ID).Msg("failed to dead-letter message")

		return false
	}

	if err := delivery.Term(ctx, reason); err != nil {
		l.Error().Err(err).Str("message_id", msg.ID).Msg("failed to terminate dead-lettered message")
	}

	l.Warn().
		Str("message_id", msg.ID).
		Str("kind", msg.Kind.String()).
		Int64("device_id", msg.DeviceID.Int64()).
		Str("reason", reason).
		Msg("message dead-lettered")

	w.metrics.Inc(ctx, metrics.TelemetryDeadLetteredTotal, int64(1), attribute.String("kind", msg.Kind.String()))

	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
