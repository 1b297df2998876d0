package queries

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
	ListDeadLettersQuery struct {
		Limit int
	}

	ListDeadLettersQueryHandler = decorator.QueryHandler[ListDeadLettersQuery, []ports.DeadLetter]

	listDeadLettersQueryHandler struct {
		deadLetters ports.DeadLetterStore
	}
)

func NewListDeadLettersQueryHandler(
	deadLetters ports.DeadLetterStore,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) ListDeadLettersQueryHandler {
	return decorator.ApplyQueryDecorators[ListDeadLettersQuery, []ports.DeadLetter](
		listDeadLettersQueryHandler{deadLetters: deadLetters},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h listDeadLettersQueryHandler) Execute(ctx context.Context, query ListDeadLettersQuery) ([]ports.DeadLetter, error) {
	if h.deadLetters == nil {
		return nil, model.ErrQueueUnavailable
	}

	return h.deadLetters.List(ctx, query.Limit)
}
