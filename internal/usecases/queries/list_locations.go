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
	LocationPage = *model.PageResult[model.LocationSample]

	ListLocationsQuery struct {
		DeviceID model.DeviceID
		Page     model.Page
	}

	ListLocationsQueryHandler = decorator.QueryHandler[ListLocationsQuery, LocationPage]

	listLocationsQueryHandler struct {
		tracking ports.TrackingQueries
	}
)

func NewListLocationsQueryHandler(
	tracking ports.TrackingQueries,
	cache decorator.Cache[ListLocationsQuery, LocationPage],
	cacheConfig decorator.CacheConfig,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) ListLocationsQueryHandler {
	return decorator.NewQueryCachingDecorator(
		decorator.ApplyQueryDecorators[ListLocationsQuery, LocationPage](
			listLocationsQueryHandler{tracking: tracking},
			log,
			metricsClient,
			tracerProvider,
		),
		cache,
		cacheConfig,
	)
}

func (h listLocationsQueryHandler) Execute(ctx context.Context, query ListLocationsQuery) (LocationPage, error) {
	result, err := h.tracking.LocationHistory(ctx, query.DeviceID, query.Page)
	if err != nil {
		return nil, err
	}

	return &result, nil
}
