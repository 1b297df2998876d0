package usecases

import (
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/internal/usecases/commands"
	"github.com/architeacher/gpstracker/internal/usecases/queries"
	"github.com/architeacher/gpstracker/pkg/decorator"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/architeacher/gpstracker/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	Commands struct {
		SubmitLocation    commands.SubmitLocationCommandHandler
		SubmitEvent       commands.SubmitEventCommandHandler
		CreateAlert       commands.CreateAlertCommandHandler
		ResolveAlert      commands.ResolveAlertCommandHandler
		PurgeCache        commands.PurgeCacheCommandHandler
		ReplayDeadLetters commands.ReplayDeadLettersCommandHandler
	}

	Queries struct {
		GetDevice            queries.GetDeviceQueryHandler
		GetLastLocation      queries.GetLastLocationQueryHandler
		ListLocations        queries.ListLocationsQueryHandler
		ListLocationsInRange queries.ListLocationsInRangeQueryHandler
		ListEvents           queries.ListEventsQueryHandler
		ListDeviceAlerts     queries.ListDeviceAlertsQueryHandler
		ListUnresolvedAlerts queries.ListUnresolvedAlertsQueryHandler
		ListDeadLetters      queries.ListDeadLettersQueryHandler
		FetchLiveness        queries.FetchLivenessQueryHandler
		FetchReadiness       queries.FetchReadinessQueryHandler
		FetchHealthReport    queries.FetchHealthReportQueryHandler
	}

	// LocationCaches holds the read cache of each cached query. A nil field
	// reads straight from the store.
	LocationCaches struct {
		Last       decorator.Cache[queries.GetLastLocationQuery, *model.LocationSample]
		Pages      decorator.Cache[queries.ListLocationsQuery, queries.LocationPage]
		Ranges     decorator.Cache[queries.ListLocationsInRangeQuery, queries.LocationPage]
		LastConfig decorator.CacheConfig
		PageConfig decorator.CacheConfig
	}

	WebApplication struct {
		Commands Commands
		Queries  Queries
	}
)

func NewWebApplication(
	tracker ports.TrackerService,
	healthChecker ports.HealthChecker,
	locationCache ports.LocationCache,
	caches LocationCaches,
	deadLetters ports.DeadLetterStore,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) *WebApplication {
	return &WebApplication{
		Commands: Commands{
			SubmitLocation:    commands.NewSubmitLocationCommandHandler(tracker, log, metricsClient, tracerProvider),
			SubmitEvent:       commands.NewSubmitEventCommandHandler(tracker, log, metricsClient, tracerProvider),
			CreateAlert:       commands.NewCreateAlertCommandHandler(tracker, log, metricsClient, tracerProvider),
			ResolveAlert:      commands.NewResolveAlertCommandHandler(tracker, log, metricsClient, tracerProvider),
			PurgeCache:        commands.NewPurgeCacheCommandHandler(locationCache, log, metricsClient, tracerProvider),
			ReplayDeadLetters: commands.NewReplayDeadLettersCommandHandler(deadLetters, log, metricsClient, tracerProvider),
		},
		Queries: Queries{
			GetDevice:            queries.NewGetDeviceQueryHandler(tracker, log, metricsClient, tracerProvider),
			GetLastLocation:      queries.NewGetLastLocationQueryHandler(tracker, caches.Last, caches.LastConfig, log, metricsClient, tracerProvider),
			ListLocations:        queries.NewListLocationsQueryHandler(tracker, caches.Pages, caches.PageConfig, log, metricsClient, tracerProvider),
			ListLocationsInRange: queries.NewListLocationsInRangeQueryHandler(tracker, caches.Ranges, caches.PageConfig, log, metricsClient, tracerProvider),
			ListEvents:           queries.NewListEventsQueryHandler(tracker, log, metricsClient, tracerProvider),
			ListDeviceAlerts:     queries.NewListDeviceAlertsQueryHandler(tracker, log, metricsClient, tracerProvider),
			ListUnresolvedAlerts: queries.NewListUnresolvedAlertsQueryHandler(tracker, log, metricsClient, tracerProvider),
			ListDeadLetters:      queries.NewListDeadLettersQueryHandler(deadLetters, log, metricsClient, tracerProvider),
			FetchLiveness:        queries.NewFetchLivenessQueryHandler(healthChecker, log, metricsClient, tracerProvider),
			FetchReadiness:       queries.NewFetchReadinessQueryHandler(healthChecker, log, metricsClient, tracerProvider),
			FetchHealthReport:    queries.NewFetchHealthReportQueryHandler(healthChecker, log, metricsClient, tracerProvider),
		},
	}
}
