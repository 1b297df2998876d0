package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

//go:embed migrations/*.up.sql
var migrationsFS embed.FS

// migrationLockID serialises concurrent migrators across instances.
const migrationLockID = 7_312_004_211

// Migrator is the subset of pgx used to apply migrations; both *pgxpool.Pool
// and *pgx.Conn satisfy it.
type Migrator interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Migrate applies every embedded migration that is not yet recorded in
// schema_migrations, in file name order. It returns the applied versions.
func Migrate(ctx context.Context, db Migrator) ([]string, error) {
	names, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	sort.Strings(names)

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning migration transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return nil, fmt.Errorf("acquiring migration lock: %w", err)
	}

	if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return nil, fmt.Errorf("creating schema_migrations: %w", err)
	}

	applied := make([]string, 0, len(names))

	for _, name := range names {
		version := strings.TrimSuffix(strings.TrimPrefix(name, "migrations/"), ".up.sql")

		var exists bool
		if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", version).Scan(&exists); err != nil {
			return nil, fmt.Errorf("checking migration %s: %w", version, err)
		}

		if exists {
			continue
		}

		script, err := migrationsFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", version, err)
		}

		if _, err := tx.Exec(ctx, string(script)); err != nil {
			return nil, fmt.Errorf("applying migration %s: %w", version, err)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			return nil, fmt.Errorf("recording migration %s: %w", version, err)
		}

		applied = append(applied, version)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing migrations: %w", err)
	}

	return applied, nil
}
