package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/handlers"
	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/handlers/public"
	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/internal/usecases"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/architeacher/gpstracker/pkg/metrics"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/throttled/throttled/v2"
	"go.opentelemetry.io/otel/trace"
)

const (
	baseURL = "/v1"

	livePathSuffix = "/live"
)

type RouterConfig struct {
	App            *usecases.WebApplication
	Logger         logger.Logger
	MetricsClient  metrics.Client
	TracerProvider trace.TracerProvider
	Config         *config.ServiceConfig

	// Broadcaster feeds the live websocket endpoint; nil disables it.
	Broadcaster ports.Broadcaster

	RateLimitStore   throttled.GCRAStoreCtx
	IdempotencyCache ports.IdempotencyCache
}

// Router is the public API handler together with the tracker handler it
// serves, so the caller can close live streams on shutdown.
type Router struct {
	http.Handler

	Tracker *public.TrackerHandler
}

func NewRouter(cfg RouterConfig) (*Router, error) {
	router := chi.NewRouter()

	// Core middlewares - always applied
	router.Use(middleware.RequestTracking())
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Recovery(cfg.Logger))
	router.Use(chimiddleware.Maybe(
		chimiddleware.Timeout(cfg.Config.PublicHTTPServer.RequestTimeout),
		func(r *http.Request) bool {
			return !strings.HasSuffix(r.URL.Path, livePathSuffix)
		},
	))
	router.Use(middleware.SecurityHeaders(cfg.Config.App.APIVersion))
	router.Use(middleware.CORS(cfg.Config.Live.AllowedOrigins))

	healthFilter := middleware.NewHealthCheckFilter(cfg.Config.Logging.AccessLog.LogHealthChecks)
	router.Use(healthFilter.Middleware)

	if cfg.Config.Telemetry.Traces.Enabled && cfg.TracerProvider != nil {
		router.Use(middleware.Tracer(cfg.Config.App.ServiceName, cfg.TracerProvider))
		cfg.Logger.Info().Msg("distributed tracing enabled")
	}

	swagger, err := handlers.GetSwagger()
	if err != nil {
		return nil, fmt.Errorf("loading API document: %w", err)
	}

	// Set server to match the base URL for proper path matching
	swagger.Servers = openapi3.Servers{
		&openapi3.Server{URL: baseURL},
	}

	requestValidator, err := middleware.OapiRequestValidatorWithOptions(
		swagger,
		&middleware.RequestValidatorOptions{
			Options: openapi3filter.Options{
				MultiError:         false,
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
			ErrorHandler: middleware.RequestValidationErrHandler,
		},
	)
	if err != nil {
		return nil, err
	}
	router.Use(requestValidator)

	if cfg.Config.ThrottledRateLimiting.Enabled && cfg.RateLimitStore != nil {
		rateLimiter, err := middleware.ThrottledRateLimitingMiddleware(
			cfg.Config.ThrottledRateLimiting, cfg.RateLimitStore, cfg.Logger,
		)
		if err != nil {
			return nil, err
		}

		router.Use(rateLimiter)
		cfg.Logger.Info().
			Uint("requests_per_second", cfg.Config.ThrottledRateLimiting.RequestsPerSecond).
			Bool("per_ip", cfg.Config.ThrottledRateLimiting.EnableIPLimiting).
			Msg("rate limiting enabled")
	}

	if cfg.Config.Idempotency.Enabled && cfg.IdempotencyCache != nil {
		router.Use(middleware.IdempotencyMiddleware(cfg.IdempotencyCache, cfg.Config.Idempotency, cfg.Logger))
		cfg.Logger.Info().Msg("idempotency keys enabled")
	}

	if cfg.Config.Telemetry.Metrics.Enabled && cfg.MetricsClient != nil {
		metricsMiddleware := middleware.NewMetricsMiddleware(cfg.MetricsClient)
		router.Use(metricsMiddleware.Middleware)
		cfg.Logger.Info().Msg("HTTP metrics collection enabled")
	}

	if cfg.Config.Logging.AccessLog.Enabled {
		router.Use(middleware.AccessLogger(cfg.Logger, cfg.Config.Logging.AccessLog.IncludeQueryParams))
		cfg.Logger.Info().
			Bool("log_health_checks", cfg.Config.Logging.AccessLog.LogHealthChecks).
			Msg("structured access logging enabled")
	}

	opts := []public.TrackerHandlerOption{
		public.WithRetryAfter(cfg.Config.CircuitBreaker.Timeout),
	}
	if cfg.Broadcaster != nil {
		opts = append(opts, public.WithLiveUpdates(cfg.Broadcaster, cfg.Config.Live))
	}

	tracker := public.NewTrackerHandler(cfg.App, cfg.Logger, opts...)

	return &Router{
		Handler: public.HandlerWithOptions(tracker, public.ChiServerOptions{
			BaseRouter:       router,
			BaseURL:          baseURL,
			ErrorHandlerFunc: public.ParamErrorHandler,
		}),
		Tracker: tracker,
	}, nil
}
