package runtime

import (
	"context"
	"fmt"
	"net/http"

	inboundhttp "github.com/architeacher/gpstracker/internal/adapters/inbound/http"
	"github.com/architeacher/gpstracker/internal/adapters/queue"
	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/internal/infrastructure"
	"github.com/architeacher/gpstracker/internal/pipeline"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/internal/services"
	"github.com/architeacher/gpstracker/internal/usecases"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/architeacher/gpstracker/pkg/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/throttled/throttled/v2"
	otelTrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

type (
	infrastructureDep struct {
		publicHttpServer *http.Server
		adminHttpServer  *http.Server
		grpcServer       *grpc.Server
		grpcHealth       *health.Server
		dbPool           *pgxpool.Pool
		cacheClient      *infrastructure.KeydbClient
		natsClient       *infrastructure.NATSClient
		mqttClient       *infrastructure.MQTTClient
		logger           logger.Logger
		metricsClient    metrics.Client
		tracerProvider   otelTrace.TracerProvider
	}

	repositories struct {
		secretsRepo     ports.SecretsRepository
		idempotencyRepo ports.IdempotencyCache
		locationCache   ports.LocationCache
		rateLimitStore  throttled.GCRAStoreCtx
		repos           services.Repositories
	}

	queueDep struct {
		publisher   *queue.JetStreamPublisher
		sources     *queue.SourceFactory
		deadLetters *queue.DeadLetterStore
		dispatcher  *pipeline.Dispatcher
	}

	servicesDep struct {
		tracker       *services.TrackerService
		healthChecker *services.HealthService
		broadcaster   ports.Broadcaster
	}

	applications struct {
		webApp *usecases.WebApplication
		router *inboundhttp.Router
	}

	cleanup struct {
		resource string
		fn       func(ctx context.Context) error
	}

	dependencies struct {
		config       *config.ServiceConfig
		configLoader *config.Loader

		infra infrastructureDep

		repos repositories

		queue queueDep

		services servicesDep

		apps applications

		// cleanups run in reverse order of registration.
		cleanups []cleanup
	}

	DependencyOption func(*dependencies) error
)

func initializeDependencies(ctx context.Context, opts ...DependencyOption) (*dependencies, error) {
	deps := &dependencies{}

	allOpts := append(defaultOptions(ctx), opts...)

	for _, opt := range allOpts {
		if err := opt(deps); err != nil {
			deps.cleanup(context.WithoutCancel(ctx))

			return nil, fmt.Errorf("failed to apply dependency option: %w", err)
		}
	}

	return deps, nil
}

func (d *dependencies) onCleanup(resource string, fn func(ctx context.Context) error) {
	d.cleanups = append(d.cleanups, cleanup{resource: resource, fn: fn})
}

func (d *dependencies) cleanup(ctx context.Context) {
	for i := len(d.cleanups) - 1; i >= 0; i-- {
		c := d.cleanups[i]

		if err := c.fn(ctx); err != nil {
			d.infra.logger.Error().
				Err(err).
				Str("resource", c.resource).
				Msg("failed to shutdown the resource gracefully")
		}
	}

	d.cleanups = nil
}
