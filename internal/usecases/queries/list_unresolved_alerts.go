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
	ListUnresolvedAlertsQuery struct {
		Page model.Page
	}

	ListUnresolvedAlertsQueryHandler = decorator.QueryHandler[ListUnresolvedAlertsQuery, model.PageResult[model.Alert]]

	listUnresolvedAlertsQueryHandler struct {
		tracking ports.TrackingQueries
	}
)

func NewListUnresolvedAlertsQueryHandler(
	tracking ports.TrackingQueries,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) ListUnresolvedAlertsQueryHandler {
	return decorator.ApplyQueryDecorators[ListUnresolvedAlertsQuery, model.PageResult[model.Alert]](
		listUnresolvedAlertsQueryHandler{tracking: tracking},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h listUnresolvedAlertsQueryHandler) Execute(ctx context.Context, query ListUnresolvedAlertsQuery) (model.PageResult[model.Alert], error) {
	return h.tracking.UnresolvedAlerts(ctx, query.Page)
}
