package commands

import (
	"context"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/decorator"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/architeacher/gpstracker/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	ReplayDeadLettersCommand struct {
		Limit int
	}

	ReplayDeadLettersCommandHandler = decorator.CommandHandler[ReplayDeadLettersCommand, int]

	replayDeadLettersCommandHandler struct {
		deadLetters ports.DeadLetterStore
	}
)

func NewReplayDeadLettersCommandHandler(
	deadLetters ports.DeadLetterStore,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) ReplayDeadLettersCommandHandler {
	return decorator.ApplyCommandDecorators[ReplayDeadLettersCommand, int](
		replayDeadLettersCommandHandler{deadLetters: deadLetters},
		log,
		metricsClient,
		tracerProvider,
	)
}

// Handle republishes parked messages onto their partitions.
func (h replayDeadLettersCommandHandler) Handle(ctx context.Context, cmd ReplayDeadLettersCommand) (int, error) {
	if h.deadLetters == nil {
		return 0, model.ErrQueueUnavailable
	}

	return h.deadLetters.Replay(ctx, cmd.Limit)
}
