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
	GetLastLocationQuery struct {
		DeviceID model.DeviceID
	}

	GetLastLocationQueryHandler = decorator.QueryHandler[GetLastLocationQuery, *model.LocationSample]

	getLastLocationQueryHandler struct {
		tracking ports.TrackingQueries
	}
)

// NewGetLastLocationQueryHandler serves the newest sample through the read
// cache. cache may be nil to always read the store.
func NewGetLastLocationQueryHandler(
	tracking ports.TrackingQueries,
	cache decorator.Cache[GetLastLocationQuery, *model.LocationSample],
	cacheConfig decorator.CacheConfig,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) GetLastLocationQueryHandler {
	return decorator.NewQueryCachingDecorator(
		decorator.ApplyQueryDecorators[GetLastLocationQuery, *model.LocationSample](
			getLastLocationQueryHandler{tracking: tracking},
			log,
			metricsClient,
			tracerProvider,
		),
		cache,
		cacheConfig,
	)
}

func (h getLastLocationQueryHandler) Execute(ctx context.Context, query GetLastLocationQuery) (*model.LocationSample, error) {
	return h.tracking.LastLocation(ctx, query.DeviceID)
}
