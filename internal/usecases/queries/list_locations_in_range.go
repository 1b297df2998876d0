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
	ListLocationsInRangeQuery struct {
		DeviceID  model.DeviceID
		TimeRange model.TimeRange
		Page      model.Page
	}

	ListLocationsInRangeQueryHandler = decorator.QueryHandler[ListLocationsInRangeQuery, LocationPage]

	listLocationsInRangeQueryHandler struct {
		tracking ports.TrackingQueries
	}
)

func NewListLocationsInRangeQueryHandler(
	tracking ports.TrackingQueries,
	cache decorator.Cache[ListLocationsInRangeQuery, LocationPage],
	cacheConfig decorator.CacheConfig,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) ListLocationsInRangeQueryHandler {
	return decorator.NewQueryCachingDecorator(
		decorator.ApplyQueryDecorators[ListLocationsInRangeQuery, LocationPage](
			listLocationsInRangeQueryHandler{tracking: tracking},
			log,
			metricsClient,
			tracerProvider,
		),
		cache,
		cacheConfig,
	)
}

func (h listLocationsInRangeQueryHandler) Execute(ctx context.Context, query ListLocationsInRangeQuery) (LocationPage, error) {
	result, err := h.tracking.LocationHistoryInRange(ctx, query.DeviceID, query.TimeRange, query.Page)
	if err != nil {
		return nil, err
	}

	return &result, nil
}
