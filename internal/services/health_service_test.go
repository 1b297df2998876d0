package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/services"
	"github.com/stretchr/testify/require"
)

type pinger struct {
	err error
}

func (p pinger) Ping(context.Context) error {
	return p.err
}

type cacheProbe struct {
	healthy bool
}

func (c cacheProbe) IsHealthy(context.Context) bool {
	return c.healthy
}

func TestHealthService_Readiness(t *testing.T) {
	t.Parallel()

	down := errors.New("connection refused")

	cases := []struct {
		name           string
		databaseErr    error
		queueErr       error
		cacheHealthy   bool
		expectedStatus model.HealthStatus
	}{
		{name: "all up", cacheHealthy: true, expectedStatus: model.HealthStatusOK},
		{name: "cache down degrades", expectedStatus: model.HealthStatusDegraded},
		{name: "database down", databaseErr: down, cacheHealthy: true, expectedStatus: model.HealthStatusDown},
		{name: "queue down", queueErr: down, cacheHealthy: true, expectedStatus: model.HealthStatusDown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := services.NewHealthService(
				pinger{err: tc.databaseErr},
				pinger{err: tc.queueErr},
				cacheProbe{healthy: tc.cacheHealthy},
				config.App{APIVersion: "v1"},
			)

			report, err := svc.Readiness(t.Context())
			require.NoError(t, err)
			require.Equal(t, tc.expectedStatus, report.Status)
			require.Len(t, report.Checks, 3)

			if tc.databaseErr != nil {
				require.Equal(t, model.DependencyStatusDown, report.Checks[services.DependencyPostgres].Status)
				require.Equal(t, down.Error(), report.Checks[services.DependencyPostgres].Error)
			}
		})
	}
}

func TestHealthService_HealthAndLiveness(t *testing.T) {
	t.Parallel()

	svc := services.NewHealthService(pinger{}, pinger{}, nil, config.App{APIVersion: "v1"})

	liveness, err := svc.Liveness(t.Context())
	require.NoError(t, err)
	require.Equal(t, model.HealthStatusOK, liveness.Status)

	report, err := svc.Health(t.Context())
	require.NoError(t, err)
	require.Equal(t, model.HealthStatusOK, report.Status)
	require.Equal(t, "v1", report.Version.API)
	require.NotEmpty(t, report.Version.Go)
	require.NotZero(t, report.System.Goroutines)
	require.NotContains(t, report.Checks, services.DependencyCache)
}
