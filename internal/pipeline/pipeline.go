// Package pipeline turns queued telemetry into stored rows, cache
// invalidations, live notifications and derived alerts.
package pipeline

import (
	"context"
	"fmt"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/architeacher/gpstracker/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
)

type Pipeline struct {
	stages      map[model.TelemetryKind]Stage
	rules       []Rule
	cache       CacheInvalidator
	broadcaster ports.Broadcaster
	metrics     metrics.Client
	logger      logger.Logger
}

func New(
	cache CacheInvalidator,
	broadcaster ports.Broadcaster,
	metricsClient metrics.Client,
	log logger.Logger,
	stages ...Stage,
) *Pipeline {
	byKind := make(map[model.TelemetryKind]Stage, len(stages))
	for _, stage := range stages {
		byKind[stage.Kind()] = stage
	}

	return &Pipeline{
		stages:      byKind,
		cache:       cache,
		broadcaster: broadcaster,
		metrics:     metricsClient,
		logger:      log.Component("pipeline"),
	}
}

func (p *Pipeline) WithRules(rules ...Rule) *Pipeline {
	p.rules = append(p.rules, rules...)

	return p
}

// Handle validates and stores one message, then fans the stored row out.
// Only validation and persistence errors are returned; once the row exists,
// cache, broadcast and rule failures are logged so a retry never stores it twice.
func (p *Pipeline) Handle(ctx context.Context, msg model.TelemetryMessage) error {
	_, err := p.Ingest(ctx, msg)

	return err
}

// Ingest is Handle for callers that answer with the stored row.
func (p *Pipeline) Ingest(ctx context.Context, msg model.TelemetryMessage) (Record, error) {
	if err := msg.Validate(); err != nil {
		return Record{}, err
	}

	stage, ok := p.stages[msg.Kind]
	if !ok {
		return Record{}, fmt.Errorf("%w: no stage handles kind %q", model.ErrInvalidMessage, msg.Kind)
	}

	if err := stage.Validate(ctx, msg); err != nil {
		return Record{}, err
	}

	record, err := stage.Persist(ctx, msg)
	if err != nil {
		return Record{}, err
	}

	p.invalidate(ctx, stage, record)
	p.broadcast(ctx, stage, record)

	if record.Kind == model.TelemetryKindAlert {
		p.metrics.Inc(ctx, metrics.AlertsRaisedTotal, int64(1), attribute.String("type", msg.AlertType.String()))
	}

	p.evaluate(ctx, record)

	return record, nil
}

func (p *Pipeline) invalidate(ctx context.Context, stage Stage, record Record) {
	if p.cache == nil {
		return
	}

	for _, key := range stage.CacheKeysFor(record) {
		if err := p.cache.Invalidate(ctx, key); err != nil {
			l := p.logger.WithContext(ctx)
			l.Warn().Err(err).Str("key", key).Msg("failed to invalidate cache entry")
		}
	}
}

func (p *Pipeline) broadcast(ctx context.Context, stage Stage, record Record) {
	if p.broadcaster == nil {
		return
	}

	topic := stage.TopicFor(record)
	l := p.logger.WithContext(ctx)

	payload, err := model.EncodeLiveUpdate(record.Kind, record.DeviceID, record.Data)
	if err != nil {
		l.Error().Err(err).Str("topic", topic).Msg("failed to encode live update")

		return
	}

	if err := p.broadcaster.Publish(ctx, topic, payload); err != nil {
		l.Warn().Err(err).Str("topic", topic).Msg("failed to broadcast live update")

		return
	}

	p.metrics.Inc(ctx, metrics.BroadcastPublishedTotal, int64(1), attribute.String("kind", record.Kind.String()))
}

func (p *Pipeline) evaluate(ctx context.Context, record Record) {
	for _, rule := range p.rules {
		for _, derived := range rule.Evaluate(ctx, record) {
			if derived.CorrelationID == "" {
				derived.CorrelationID = logger.CorrelationIDFromContext(ctx)
			}

			if err := p.Handle(ctx, derived); err != nil {
				l := p.logger.WithContext(ctx)
				l.Error().Err(err).
					Str("kind", derived.Kind.String()).
					Int64("device_id", derived.DeviceID.Int64()).
					Msg("failed to handle derived message")
			}
		}
	}
}
