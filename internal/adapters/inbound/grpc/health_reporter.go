package grpc

import (
	"context"
	"time"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/logger"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name orchestrators use when probing this service.
const ServiceName = "gpstracker.Tracker"

// HealthReporter mirrors the readiness report into the standard gRPC health
// service so orchestrators can probe the tracker over gRPC.
type HealthReporter struct {
	server   *health.Server
	checker  ports.HealthChecker
	interval time.Duration
	logger   logger.Logger
}

func NewHealthReporter(server *health.Server, checker ports.HealthChecker, interval time.Duration, log logger.Logger) *HealthReporter {
	return &HealthReporter{
		server:   server,
		checker:  checker,
		interval: interval,
		logger:   log,
	}
}

// Refresh runs one readiness check and publishes its outcome.
func (r *HealthReporter) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	servingStatus := healthpb.HealthCheckResponse_SERVING

	report, err := r.checker.Readiness(ctx)
	if err != nil || report.Status == model.HealthStatusDown {
		servingStatus = healthpb.HealthCheckResponse_NOT_SERVING
	}

	r.server.SetServingStatus("", servingStatus)
	r.server.SetServingStatus(ServiceName, servingStatus)

	return servingStatus
}

// Run refreshes until ctx is done, then marks the service as not serving.
func (r *HealthReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	previous := r.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			r.server.Shutdown()

			return
		case <-ticker.C:
			current := r.Refresh(ctx)
			if current != previous {
				r.logger.Warn().
					Str("from", previous.String()).
					Str("to", current.String()).
					Msg("gRPC serving status changed")
			}

			previous = current
		}
	}
}
