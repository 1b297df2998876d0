package pipeline

import (
	"context"
	"fmt"

	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/architeacher/gpstracker/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Dispatcher runs one worker per queue partition.
type Dispatcher struct {
	partitions     int
	sources        ports.TelemetrySourceFactory
	handler        Handler
	deadLetters    ports.DeadLetterStore
	config         config.Consumer
	metrics        metrics.Client
	tracerProvider otelTrace.TracerProvider
	logger         logger.Logger
}

func NewDispatcher(
	partitions int,
	sources ports.TelemetrySourceFactory,
	handler Handler,
	deadLetters ports.DeadLetterStore,
	cfg config.Consumer,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
	log logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		partitions:     max(partitions, 1),
		sources:        sources,
		handler:        handler,
		deadLetters:    deadLetters,
		config:         cfg,
		metrics:        metricsClient,
		tracerProvider: tracerProvider,
		logger:         log,
	}
}

// Run opens every partition and blocks until ctx is canceled and all
// workers have returned. A worker failure stops the others.
func (d *Dispatcher) Run(ctx context.Context) error {
	sources := make([]ports.TelemetrySource, 0, d.partitions)
	defer func() {
		for _, source := range sources {
			if err := source.Close(); err != nil {
				d.logger.Warn().Err(err).Msg("failed to close telemetry source")
			}
		}
	}()

	for partition := range d.partitions {
		source, err := d.sources.Source(ctx, partition)
		if err != nil {
			return fmt.Errorf("opening partition %d: %w", partition, err)
		}

		sources = append(sources, source)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	for partition, source := range sources {
		worker := NewWorker(partition, source, d.handler, d.deadLetters, d.config, d.metrics, d.tracerProvider, d.logger)

		group.Go(func() error {
			if err := worker.Run(groupCtx); err != nil {
				return fmt.Errorf("partition %d: %w", partition, err)
			}

			return nil
		})
	}

	d.logger.Info().Int("partitions", len(sources)).Msg("telemetry dispatcher running")

	return group.Wait()
}
