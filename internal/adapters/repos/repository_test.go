package repos_test

import (
	"bytes"
	"testing"

	"github.com/architeacher/gpstracker/internal/adapters/repos"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

type repoFactory[R any] func(pool repos.PoolOps, scanner repos.Scanner, log logger.Logger) R

// runRepoTest marks t parallel, so callers must not.
func runRepoTest[R any](
	t *testing.T,
	newRepo repoFactory[R],
	setupMock func(pgxmock.PgxPoolIface),
	testFn func(*testing.T, R),
) {
	t.Helper()
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	setupMock(mock)

	log := logger.NewBufferedTestLogger(&bytes.Buffer{})
	testFn(t, newRepo(mock, repos.NewPgxScanner(), log))

	require.NoError(t, mock.ExpectationsWereMet())
}
