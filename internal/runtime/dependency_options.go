package runtime

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/architeacher/gpstracker/internal/adapters/broadcast"
	inboundgrpc "github.com/architeacher/gpstracker/internal/adapters/inbound/grpc"
	inboundhttp "github.com/architeacher/gpstracker/internal/adapters/inbound/http"
	"github.com/architeacher/gpstracker/internal/adapters/queue"
	"github.com/architeacher/gpstracker/internal/adapters/repos"
	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/internal/infrastructure"
	infraPostgres "github.com/architeacher/gpstracker/internal/infrastructure/postgres"
	"github.com/architeacher/gpstracker/internal/pipeline"
	"github.com/architeacher/gpstracker/internal/services"
	"github.com/architeacher/gpstracker/internal/usecases"
	"github.com/architeacher/gpstracker/internal/usecases/queries"
	"github.com/architeacher/gpstracker/pkg/circuitbreaker"
	"github.com/architeacher/gpstracker/pkg/decorator"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/architeacher/gpstracker/pkg/metrics"
	"github.com/architeacher/gpstracker/pkg/metrics/noop"
	otelMetrics "github.com/architeacher/gpstracker/pkg/metrics/otel"
	"github.com/hashicorp/vault/api"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc/health"
)

func defaultOptions(ctx context.Context) []DependencyOption {
	return []DependencyOption{
		WithConfig(),
		WithLogger(),
		WithSecretsRepository(),
		WithConfigLoader(ctx),
		WithTelemetry(ctx),
		WithDatabase(ctx),
		WithCache(),
		WithQueue(ctx),
		WithBroadcaster(),
		WithServices(),
		WithApplication(),
		WithConsumers(),
		WithHTTPServer(),
		WithAdminHTTPServer(),
		WithGRPCServer(),
	}
}

func WithConfig() DependencyOption {
	return func(d *dependencies) error {
		cfg, err := config.Init()
		if err != nil {
			return fmt.Errorf("initializing configuration: %w", err)
		}

		d.config = cfg

		return nil
	}
}

func WithLogger() DependencyOption {
	return func(d *dependencies) error {
		d.infra.logger = logger.New(d.config.Logging.Level, d.config.Logging.Format)

		return nil
	}
}

func WithSecretsRepository() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.SecretsStorage.Enabled {
			return nil
		}

		vaultConfig := api.DefaultConfig()
		vaultConfig.Address = d.config.SecretsStorage.Address
		vaultConfig.Timeout = d.config.SecretsStorage.Timeout
		vaultConfig.MaxRetries = int(d.config.SecretsStorage.MaxRetries)

		if d.config.SecretsStorage.TLSSkipVerify {
			vaultConfig.HttpClient.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			}
		}

		client, err := api.NewClient(vaultConfig)
		if err != nil {
			return fmt.Errorf("creating Vault client: %w", err)
		}

		if d.config.SecretsStorage.Namespace != "" {
			client.SetNamespace(d.config.SecretsStorage.Namespace)
		}

		d.repos.secretsRepo = repos.NewVaultRepository(client)

		return nil
	}
}

func WithConfigLoader(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		if !d.config.SecretsStorage.Enabled || d.repos.secretsRepo == nil {
			return nil
		}

		loader := config.NewLoader(d.config, d.repos.secretsRepo, 0)

		version, err := loader.Load(ctx, d.repos.secretsRepo, d.config)
		if err != nil {
			return fmt.Errorf("loading secrets from Vault: %w", err)
		}

		if err := d.config.Validate(); err != nil {
			return fmt.Errorf("invalid configuration after loading secrets: %w", err)
		}

		d.configLoader = config.NewLoader(d.config, d.repos.secretsRepo, version)

		return nil
	}
}

func WithTelemetry(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		d.infra.tracerProvider = infrastructure.NewNoopTracerProvider()
		d.infra.metricsClient = noop.NewMetricsClient()

		telemetry := d.config.Telemetry
		if !telemetry.Enabled {
			return nil
		}

		res, err := infrastructure.NewResource(ctx, d.config.App, telemetry)
		if err != nil {
			return fmt.Errorf("describing telemetry resource: %w", err)
		}

		if telemetry.Traces.Enabled {
			tp, shutdown, err := infrastructure.NewTracerProvider(ctx, res, telemetry)
			if err != nil {
				return fmt.Errorf("initializing tracer: %w", err)
			}

			d.infra.tracerProvider = tp
			d.onCleanup("tracer", shutdown)
		}

		if telemetry.Metrics.Enabled {
			client, err := otelMetrics.NewMetricsClient(ctx, otelMetrics.Config{
				Endpoint:       infrastructure.CollectorEndpoint(telemetry),
				Insecure:       true,
				ExportInterval: telemetry.Metrics.ExportInterval,
				Descriptors:    metrics.Descriptors,
			}, res)
			if err != nil {
				return fmt.Errorf("initializing metrics: %w", err)
			}

			d.infra.metricsClient = client
			d.onCleanup("metrics", client.Shutdown)
		}

		return nil
	}
}

func WithDatabase(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		pool, err := infraPostgres.NewPool(ctx, d.config.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}

		d.infra.dbPool = pool
		d.onCleanup("database", func(context.Context) error {
			pool.Close()

			return nil
		})

		if d.config.Postgres.AutoMigrate {
			applied, err := infraPostgres.Migrate(ctx, pool)
			if err != nil {
				return fmt.Errorf("migrating database: %w", err)
			}

			d.infra.logger.Info().Strs("versions", applied).Msg("database migrations applied")
		}

		log := d.infra.logger.Component("postgres")
		scanner := repos.NewPgxScanner()

		d.repos.repos = services.Repositories{
			Devices:   repos.NewDevicesRepository(pool, scanner, log),
			Locations: repos.NewLocationsRepository(pool, scanner, log),
			Events:    repos.NewEventsRepository(pool, scanner, log),
			Alerts:    repos.NewAlertsRepository(pool, scanner, log),
		}

		return nil
	}
}

// WithCache connects the key-value store behind the read cache, the rate
// limiter, idempotency keys and the redis broadcaster.
func WithCache() DependencyOption {
	return func(d *dependencies) error {
		client := infrastructure.NewKeyDBClient(d.config.Cache, d.infra.logger.Component("keydb"))

		d.infra.cacheClient = client
		d.onCleanup("cache", func(context.Context) error {
			return client.Close()
		})

		if d.config.LocationCache.Enabled {
			d.repos.locationCache = repos.NewLocationCacheRepository(
				client,
				d.config.LocationCache.ScanBatchSize,
				d.infra.logger.Component("location-cache"),
			)
		}

		d.repos.rateLimitStore = repos.NewRateLimitStore(client)
		d.repos.idempotencyRepo = repos.NewIdempotencyRepository(client)

		return nil
	}
}

func WithQueue(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		cfg := d.config.Queue
		log := d.infra.logger.Component("queue")

		client, err := infrastructure.NewNATSClient(cfg, d.config.App.ServiceName, log)
		if err != nil {
			return err
		}

		d.infra.natsClient = client
		d.onCleanup("queue", func(context.Context) error {
			return client.Close()
		})

		if err := client.EnsureStreams(ctx); err != nil {
			return err
		}

		js := client.JetStream()

		dlqStream, err := js.Stream(ctx, cfg.DLQStream)
		if err != nil {
			return fmt.Errorf("opening dead-letter stream %s: %w", cfg.DLQStream, err)
		}

		d.queue.publisher = queue.NewJetStreamPublisher(js, cfg)
		d.queue.deadLetters = queue.NewDeadLetterStore(js, dlqStream, cfg, log)
		d.queue.sources = queue.NewSourceFactory(js, d.queue.deadLetters, cfg, log)

		return nil
	}
}

func WithBroadcaster() DependencyOption {
	return func(d *dependencies) error {
		cfg := d.config.Broadcast
		log := d.infra.logger.Component("broadcaster")

		switch cfg.Driver {
		case config.BroadcastDriverMQTT:
			client, err := infrastructure.NewMQTTClient(cfg.MQTT, log)
			if err != nil {
				return err
			}

			d.infra.mqttClient = client
			d.onCleanup("mqtt", func(context.Context) error {
				return client.Close()
			})

			d.services.broadcaster = broadcast.NewMQTTBroadcaster(client, cfg.BufferSize, log)
		default:
			d.services.broadcaster = broadcast.NewRedisBroadcaster(d.infra.cacheClient, cfg.ChannelPrefix, cfg.BufferSize, log)
		}

		return nil
	}
}

func WithServices() DependencyOption {
	return func(d *dependencies) error {
		cbConfig := d.config.CircuitBreaker
		log := d.infra.logger

		breaker := circuitbreaker.New[int](circuitbreaker.Config{
			Name:             "telemetry-queue",
			Enabled:          cbConfig.Enabled,
			MaxRequests:      cbConfig.MaxRequests,
			Interval:         cbConfig.Interval,
			Timeout:          cbConfig.Timeout,
			FailureThreshold: cbConfig.FailureThreshold,
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				log.Warn().
					Str("breaker", name).
					Str("from", string(from)).
					Str("to", string(to)).
					Msg("circuit breaker state changed")
			},
		})

		d.services.tracker = services.NewTrackerService(
			d.repos.repos,
			d.queue.publisher,
			breaker,
			d.services.broadcaster,
			d.infra.metricsClient,
			log,
		)

		d.services.healthChecker = services.NewHealthService(
			d.infra.dbPool,
			d.infra.natsClient,
			d.infra.cacheClient,
			d.config.App,
		)

		return nil
	}
}

func cacheLookupObserver(client metrics.Client, cache string) func(context.Context, decorator.CacheStatus) {
	return func(ctx context.Context, status decorator.CacheStatus) {
		client.Inc(ctx, metrics.CacheLookupsTotal, int64(1),
			attribute.String("cache", cache),
			attribute.String("status", string(status)),
		)
	}
}

func WithApplication() DependencyOption {
	return func(d *dependencies) error {
		var caches usecases.LocationCaches

		if d.repos.locationCache != nil {
			cacheCfg := d.config.LocationCache

			caches = usecases.LocationCaches{
				Last:   queries.NewLastLocationCache(d.repos.locationCache),
				Pages:  queries.NewLocationPageCache(d.repos.locationCache),
				Ranges: queries.NewLocationRangeCache(d.repos.locationCache),
				LastConfig: decorator.CacheConfig{
					Enabled:    true,
					TTL:        cacheCfg.LastTTL,
					SetTimeout: cacheCfg.SetTimeout,
					OnStatus:   cacheLookupObserver(d.infra.metricsClient, "last_location"),
				},
				PageConfig: decorator.CacheConfig{
					Enabled:    true,
					TTL:        cacheCfg.PageTTL,
					SetTimeout: cacheCfg.SetTimeout,
					OnStatus:   cacheLookupObserver(d.infra.metricsClient, "location_page"),
				},
			}
		}

		d.apps.webApp = usecases.NewWebApplication(
			d.services.tracker,
			d.services.healthChecker,
			d.repos.locationCache,
			caches,
			d.queue.deadLetters,
			d.infra.logger,
			d.infra.metricsClient,
			d.infra.tracerProvider,
		)

		return nil
	}
}

// WithConsumers builds the partition workers that drain the queue into the
// store. Replicas running only the gateway set CONSUMER_ENABLED=false.
func WithConsumers() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.Consumer.Enabled {
			return nil
		}

		var invalidator pipeline.CacheInvalidator
		if d.repos.locationCache != nil {
			invalidator = d.repos.locationCache
		}

		log := d.infra.logger.Component("consumer")
		devices := d.repos.repos.Devices

		p := pipeline.New(
			invalidator,
			d.services.broadcaster,
			d.infra.metricsClient,
			log,
			pipeline.NewLocationStage(devices, d.repos.repos.Locations, repos.DeviceCacheKeys),
			pipeline.NewEventStage(devices, d.repos.repos.Events),
			pipeline.NewAlertStage(devices, d.repos.repos.Alerts),
		)

		if d.config.Detection.Enabled {
			p.WithRules(pipeline.NewOutOfBoundsRule(d.config.Detection.Bounds()))
		}

		d.queue.dispatcher = pipeline.NewDispatcher(
			d.config.Queue.Partitions,
			d.queue.sources,
			p,
			d.queue.deadLetters,
			d.config.Consumer,
			d.infra.metricsClient,
			d.infra.tracerProvider,
			log,
		)

		return nil
	}
}

func WithHTTPServer() DependencyOption {
	return func(d *dependencies) error {
		router, err := inboundhttp.NewRouter(inboundhttp.RouterConfig{
			App:              d.apps.webApp,
			Logger:           d.infra.logger,
			MetricsClient:    d.infra.metricsClient,
			TracerProvider:   d.infra.tracerProvider,
			Config:           d.config,
			Broadcaster:      d.services.broadcaster,
			RateLimitStore:   d.repos.rateLimitStore,
			IdempotencyCache: d.repos.idempotencyRepo,
		})
		if err != nil {
			return fmt.Errorf("building public router: %w", err)
		}

		cfg := d.config.PublicHTTPServer

		d.apps.router = router
		d.infra.publicHttpServer = &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, strconv.FormatUint(uint64(cfg.Port), 10)),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		}

		// Live streams outlive WriteTimeout once hijacked; close them with the server.
		d.infra.publicHttpServer.RegisterOnShutdown(router.Tracker.CloseLive)

		return nil
	}
}

func WithAdminHTTPServer() DependencyOption {
	return func(d *dependencies) error {
		cfg := d.config.AdminHTTPServer
		if !cfg.Enabled {
			return nil
		}

		adminRouter := inboundhttp.NewAdminRouter(inboundhttp.AdminRouterConfig{
			App:           d.apps.webApp,
			LocationCache: d.repos.locationCache,
			Logger:        d.infra.logger,
		})

		d.infra.adminHttpServer = &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, strconv.FormatUint(uint64(cfg.Port), 10)),
			Handler:      adminRouter,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		}

		return nil
	}
}

func WithGRPCServer() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.GRPCServer.Enabled {
			return nil
		}

		d.infra.grpcHealth = health.NewServer()
		d.infra.grpcServer = infrastructure.NewGRPCServer(
			d.infra.grpcHealth,
			d.infra.tracerProvider,
			d.config.GRPCServer.Reflection,
			inboundgrpc.ContextExtractorInterceptor(),
			inboundgrpc.AccessLogInterceptor(d.infra.logger, d.config.Logging.AccessLog),
		)

		return nil
	}
}
