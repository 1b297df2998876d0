package services

import (
	"context"
	"runtime"
	"time"

	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
)

const (
	DependencyPostgres = "postgres"
	DependencyQueue    = "queue"
	DependencyCache    = "cache"
)

var _ ports.HealthChecker = (*HealthService)(nil)

type (
	CacheHealthChecker interface {
		IsHealthy(ctx context.Context) bool
	}

	// HealthService reports on the service and its dependencies. The database
	// and the queue are required; a failing cache only degrades the service.
	HealthService struct {
		database  ports.DatabaseHealthChecker
		queue     ports.QueueHealthChecker
		cache     CacheHealthChecker
		app       config.App
		startedAt time.Time
	}
)

func NewHealthService(
	database ports.DatabaseHealthChecker,
	queue ports.QueueHealthChecker,
	cache CacheHealthChecker,
	app config.App,
) *HealthService {
	return &HealthService{
		database:  database,
		queue:     queue,
		cache:     cache,
		app:       app,
		startedAt: time.Now().UTC(),
	}
}

func (s *HealthService) Liveness(_ context.Context) (*model.LivenessReport, error) {
	return &model.LivenessReport{
		Status:    model.HealthStatusOK,
		Timestamp: time.Now().UTC(),
		Version:   config.ServiceVersion,
	}, nil
}

func (s *HealthService) Readiness(ctx context.Context) (*model.ReadinessReport, error) {
	checks := s.check(ctx)

	return &model.ReadinessReport{
		Status:    model.OverallStatus(checks, DependencyPostgres, DependencyQueue),
		Timestamp: time.Now().UTC(),
		Version:   config.ServiceVersion,
		Checks:    checks,
	}, nil
}

func (s *HealthService) Health(ctx context.Context) (*model.HealthReport, error) {
	checks := s.check(ctx)
	now := time.Now().UTC()
	uptime := now.Sub(s.startedAt)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return &model.HealthReport{
		Status:    model.OverallStatus(checks, DependencyPostgres, DependencyQueue),
		Timestamp: now,
		Version: model.VersionInfo{
			API:   s.app.APIVersion,
			Build: config.CommitSHA,
			Go:    runtime.Version(),
		},
		Uptime: model.UptimeInfo{
			StartedAt:       s.startedAt,
			Duration:        uptime.Round(time.Second).String(),
			DurationSeconds: uint64(uptime.Seconds()),
		},
		Checks: checks,
		System: model.SystemInfo{
			Goroutines: uint(runtime.NumGoroutine()),
			CPUCores:   uint(runtime.NumCPU()),
			AllocMB:    float64(mem.Alloc) / 1024 / 1024,
			SysMB:      float64(mem.Sys) / 1024 / 1024,
			GCCycles:   mem.NumGC,
		},
	}, nil
}

func (s *HealthService) check(ctx context.Context) map[string]model.DependencyCheck {
	checks := map[string]model.DependencyCheck{
		DependencyPostgres: probe(ctx, s.database.Ping),
		DependencyQueue:    probe(ctx, s.queue.Ping),
	}

	if s.cache != nil {
		checks[DependencyCache] = probe(ctx, func(ctx context.Context) error {
			if !s.cache.IsHealthy(ctx) {
				return model.ErrCacheUnavailable
			}

			return nil
		})
	}

	return checks
}

func probe(ctx context.Context, ping func(context.Context) error) model.DependencyCheck {
	start := time.Now()
	err := ping(ctx)

	check := model.DependencyCheck{
		Status:      model.DependencyStatusUp,
		LatencyMs:   uint64(time.Since(start).Milliseconds()),
		Message:     "ok",
		LastChecked: time.Now().UTC(),
	}

	if err != nil {
		check.Status = model.DependencyStatusDown
		check.Message = "unavailable"
		check.Error = err.Error()
	}

	return check
}
