package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/architeacher/gpstracker/internal/adapters/repos"
	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/pipeline"
	"github.com/architeacher/gpstracker/internal/services"
	"github.com/architeacher/gpstracker/internal/usecases"
	"github.com/architeacher/gpstracker/internal/usecases/queries"
	"github.com/architeacher/gpstracker/pkg/decorator"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/architeacher/gpstracker/pkg/metrics/noop"
	otelNoop "go.opentelemetry.io/otel/trace/noop"
)

// Pinger is a health probe that fails with Err when it is set.
type Pinger struct {
	Err error
}

func (p Pinger) Ping(context.Context) error {
	return p.Err
}

// Harness wires the whole tracker over in-memory adapters.
type Harness struct {
	Store       *Store
	Queue       *Queue
	Cache       *LocationCache
	Broadcaster *Broadcaster
	Tracker     *services.TrackerService
	Pipeline    *pipeline.Pipeline
	App         *usecases.WebApplication
}

func NewHarness(deviceIDs ...model.DeviceID) *Harness {
	log := logger.NewTestLogger()
	metricsClient := noop.NewMetricsClient()
	tracerProvider := otelNoop.NewTracerProvider()

	store := NewStore(deviceIDs...)
	queue := NewQueue(4)
	cache := NewLocationCache()
	broadcaster := NewBroadcaster()

	tracker := services.NewTrackerService(
		services.Repositories{
			Devices:   store.DevicesRepository(),
			Locations: store.LocationsRepository(),
			Events:    store.EventsRepository(),
			Alerts:    store.AlertsRepository(),
		},
		queue,
		nil,
		broadcaster,
		metricsClient,
		log,
	)

	devices := store.DevicesRepository()
	p := pipeline.New(
		cache,
		broadcaster,
		metricsClient,
		log,
		pipeline.NewLocationStage(devices, store.LocationsRepository(), repos.DeviceCacheKeys),
		pipeline.NewEventStage(devices, store.EventsRepository()),
		pipeline.NewAlertStage(devices, store.AlertsRepository()),
	)

	cacheConfig := decorator.CacheConfig{Enabled: true, TTL: time.Minute, SetTimeout: time.Second}
	health := services.NewHealthService(Pinger{}, Pinger{}, cache, config.App{ServiceName: "svc-tracker", APIVersion: "v1"})

	app := usecases.NewWebApplication(
		tracker,
		health,
		cache,
		usecases.LocationCaches{
			Last:       queries.NewLastLocationCache(cache),
			Pages:      queries.NewLocationPageCache(cache),
			Ranges:     queries.NewLocationRangeCache(cache),
			LastConfig: cacheConfig,
			PageConfig: cacheConfig,
		},
		queue,
		log,
		metricsClient,
		tracerProvider,
	)

	return &Harness{
		Store:       store,
		Queue:       queue,
		Cache:       cache,
		Broadcaster: broadcaster,
		Tracker:     tracker,
		Pipeline:    p,
		App:         app,
	}
}

// RunConsumers drains the queue through the pipeline until the test ends.
func (h *Harness) RunConsumers(t testing.TB) {
	t.Helper()

	dispatcher := pipeline.NewDispatcher(
		h.Queue.Partitions(),
		h.Queue,
		h.Pipeline,
		h.Queue,
		config.Consumer{
			Enabled:           true,
			ProcessingTimeout: 5 * time.Second,
			MaxRetries:        1,
			Backoff: config.Backoff{
				BaseDelay:  time.Millisecond,
				Multiplier: 1.5,
				MaxDelay:   5 * time.Millisecond,
			},
		},
		noop.NewMetricsClient(),
		otelNoop.NewTracerProvider(),
		logger.NewTestLogger(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = dispatcher.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})
}
