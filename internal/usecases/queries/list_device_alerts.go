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
	ListDeviceAlertsQuery struct {
		DeviceID model.DeviceID
		Resolved *bool
		Page     model.Page
	}

	ListDeviceAlertsQueryHandler = decorator.QueryHandler[ListDeviceAlertsQuery, model.PageResult[model.Alert]]

	listDeviceAlertsQueryHandler struct {
		tracking ports.TrackingQueries
	}
)

func NewListDeviceAlertsQueryHandler(
	tracking ports.TrackingQueries,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) ListDeviceAlertsQueryHandler {
	return decorator.ApplyQueryDecorators[ListDeviceAlertsQuery, model.PageResult[model.Alert]](
		listDeviceAlertsQueryHandler{tracking: tracking},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h listDeviceAlertsQueryHandler) Execute(ctx context.Context, query ListDeviceAlertsQuery) (model.PageResult[model.Alert], error) {
	return h.tracking.DeviceAlerts(ctx, query.DeviceID, query.Resolved, query.Page)
}
