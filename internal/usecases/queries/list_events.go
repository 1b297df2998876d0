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
	// ListEventsQuery lists a device's events, newest first. An empty Type
	// matches every type.
	ListEventsQuery struct {
		DeviceID model.DeviceID
		Type     model.EventType
		Page     model.Page
	}

	ListEventsQueryHandler = decorator.QueryHandler[ListEventsQuery, model.PageResult[model.DeviceEvent]]

	listEventsQueryHandler struct {
		tracking ports.TrackingQueries
	}
)

func NewListEventsQueryHandler(
	tracking ports.TrackingQueries,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) ListEventsQueryHandler {
	return decorator.ApplyQueryDecorators[ListEventsQuery, model.PageResult[model.DeviceEvent]](
		listEventsQueryHandler{tracking: tracking},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h listEventsQueryHandler) Execute(ctx context.Context, query ListEventsQuery) (model.PageResult[model.DeviceEvent], error) {
	return h.tracking.RecentEvents(ctx, query.DeviceID, query.Type, query.Page)
}
