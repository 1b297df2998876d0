package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/pipeline"
	"github.com/architeacher/gpstracker/internal/testutil"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/architeacher/gpstracker/pkg/metrics/noop"
	"github.com/stretchr/testify/require"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestDispatcher_PreservesPerDeviceOrder(t *testing.T) {
	t.Parallel()

	const (
		devices          = 5
		samplesPerDevice = 20
	)

	ids := make([]model.DeviceID, 0, devices)
	for id := range devices {
		ids = append(ids, model.DeviceID(id+1))
	}

	f := newFixture(ids...)
	q := testutil.NewQueue(4)

	for i := range samplesPerDevice {
		for _, id := range ids {
			_, err := q.Publish(t.Context(), model.NewLocationMessage(id, float64(i), 0, nil))
			require.NoError(t, err)
		}
	}

	dispatcher := pipeline.NewDispatcher(q.Partitions(), q, f.pipeline, q, consumerConfig(1),
		noop.NewMetricsClient(), tracenoop.NewTracerProvider(), logger.NewTestLogger())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() {
		done <- dispatcher.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(f.store.Locations()) == devices*samplesPerDevice
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	// Inserts are appended in arrival order, so each device's latitudes
	// must come out as 0, 1, 2, ...
	next := make(map[model.DeviceID]float64, devices)
	for _, sample := range f.store.Locations() {
		require.InDelta(t, next[sample.DeviceID], sample.Latitude, 1e-9, "device %s out of order", sample.DeviceID)
		next[sample.DeviceID]++
	}

	require.Len(t, q.Acked(), devices*samplesPerDevice)
	require.Empty(t, q.DeadLetters())
}

func TestDispatcher_UnknownDeviceIsDeadLettered(t *testing.T) {
	t.Parallel()

	f := newFixture(7)
	q := testutil.NewQueue(2)

	_, err := q.Publish(t.Context(), model.NewLocationMessage(999, 40.7128, -74.0060, nil))
	require.NoError(t, err)

	dispatcher := pipeline.NewDispatcher(q.Partitions(), q, f.pipeline, q, consumerConfig(3),
		noop.NewMetricsClient(), tracenoop.NewTracerProvider(), logger.NewTestLogger())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() {
		done <- dispatcher.Run(ctx)
	}()

	require.Eventually(t, func() bool { return len(q.DeadLetters()) == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	require.Empty(t, f.store.Locations())
	require.Contains(t, q.DeadLetters()[0].Reason, model.ErrDeviceNotFound.Error())
}
