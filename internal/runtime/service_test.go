package runtime

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("creates service context with default values", func(t *testing.T) {
		t.Parallel()

		serviceCtx := New()

		require.NotNil(t, serviceCtx)
		require.NotNil(t, serviceCtx.shutdownChannel)
		require.Nil(t, serviceCtx.deps)
		require.Nil(t, serviceCtx.serverReady)
		require.Empty(t, serviceCtx.depOptions)
	})

	t.Run("creates service context with options", func(t *testing.T) {
		t.Parallel()

		ch := make(chan os.Signal, 1)
		serviceCtx := New(
			WithServiceTermination(ch),
			WithWaitingForServer(),
			WithDependencyOptions(func(*dependencies) error { return nil }),
		)

		require.NotNil(t, serviceCtx)
		require.Equal(t, ch, serviceCtx.shutdownChannel)
		require.NotNil(t, serviceCtx.serverReady)
		require.Len(t, serviceCtx.depOptions, 1)
	})
}

func TestDependencies_CleanupRunsInReverseOrder(t *testing.T) {
	t.Parallel()

	deps := &dependencies{}
	deps.infra.logger = logger.NewTestLogger()

	var order []string

	for _, name := range []string{"database", "cache", "queue"} {
		deps.onCleanup(name, func(context.Context) error {
			order = append(order, name)

			return nil
		})
	}

	deps.onCleanup("failing", func(context.Context) error {
		order = append(order, "failing")

		return errors.New("boom")
	})

	deps.cleanup(t.Context())

	require.Equal(t, []string{"failing", "queue", "cache", "database"}, order)
	require.Empty(t, deps.cleanups)

	deps.cleanup(t.Context())
	require.Len(t, order, 4)
}
