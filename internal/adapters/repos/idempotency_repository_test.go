package repos_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/architeacher/gpstracker/internal/adapters/repos"
	"github.com/architeacher/gpstracker/internal/infrastructure"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/stretchr/testify/require"
)

func newIdempotencyRepo(t *testing.T) (*repos.IdempotencyRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := infrastructure.NewKeyDBClient(newTestCacheConfig(mr), logger.NewTestLogger())
	t.Cleanup(func() { _ = client.Close() })

	return repos.NewIdempotencyRepository(client), mr
}

func TestIdempotencyRepository_GetMissing(t *testing.T) {
	t.Parallel()

	repo, _ := newIdempotencyRepo(t)

	response, err := repo.Get(t.Context(), "missing")
	require.NoError(t, err)
	require.Nil(t, response)
}

func TestIdempotencyRepository_SetAndGet(t *testing.T) {
	t.Parallel()

	repo, _ := newIdempotencyRepo(t)
	stored := &ports.CachedResponse{
		StatusCode:  201,
		Headers:     map[string]string{"Content-Type": "application/json"},
		Body:        []byte(`{"id":3}`),
		Fingerprint: "abc",
		CreatedAt:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, repo.Set(t.Context(), "key-1", stored, time.Hour))

	response, err := repo.Get(t.Context(), "key-1")
	require.NoError(t, err)
	require.Equal(t, stored, response)
}

func TestIdempotencyRepository_Lock(t *testing.T) {
	t.Parallel()

	repo, mr := newIdempotencyRepo(t)
	ctx := t.Context()

	acquired, err := repo.SetLock(ctx, "key-1", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = repo.SetLock(ctx, "key-1", time.Minute)
	require.NoError(t, err)
	require.False(t, acquired)

	require.NoError(t, repo.ReleaseLock(ctx, "key-1"))
	require.False(t, mr.Exists("gpstracker:idempotency:key-1:lock"))

	acquired, err = repo.SetLock(ctx, "key-1", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)
	require.True(t, repo.IsHealthy(ctx))
}
