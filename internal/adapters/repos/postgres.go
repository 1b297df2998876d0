package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	devicesTable   = "devices"
	locationsTable = "gps_locations"
	eventsTable    = "device_events"
	alertsTable    = "alerts"

	totalCountColumn = "COUNT(*) OVER() as total_count"

	// Raised by the insert_* procedures when the device is missing.
	pgCodeNoDataFound = "P0002"
	pgCodeForeignKey  = "23503"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PoolOps is the subset of pgxpool.Pool the repositories need.
type PoolOps interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// mapWriteError translates a failed write. A missing device surfaces as
// model.ErrDeviceNotFound whichever layer caught it.
func mapWriteError(err error, deviceID model.DeviceID) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgCodeNoDataFound || pgErr.Code == pgCodeForeignKey) {
		return fmt.Errorf("%w: %s", model.ErrDeviceNotFound, deviceID)
	}

	return fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	utc := t.UTC()

	return &utc
}

// selectPage runs a windowed select and converts each row. Rows carry the
// total match count in total_count; a page past the end has no rows to carry
// it, so the matches are counted separately.
func selectPage[Row any, T any](
	ctx context.Context,
	pool PoolOps,
	scanner Scanner,
	builder sq.SelectBuilder,
	page model.Page,
	totalOf func(Row) uint,
	convert func(Row) T,
) (model.PageResult[T], error) {
	query, args, err := builder.
		Limit(page.Limit()).
		Offset(page.Offset()).
		ToSql()
	if err != nil {
		return model.PageResult[T]{}, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return model.PageResult[T]{}, fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}
	defer rows.Close()

	var scanned []Row
	if err := scanner.ScanAll(&scanned, rows); err != nil {
		return model.PageResult[T]{}, err
	}

	items := make([]T, 0, len(scanned))

	var total uint
	for index := range scanned {
		total = totalOf(scanned[index])
		items = append(items, convert(scanned[index]))
	}

	if len(scanned) == 0 && page.Offset() > 0 {
		total, err = countMatches(ctx, pool, builder)
		if err != nil {
			return model.PageResult[T]{}, err
		}
	}

	return model.NewPageResult(items, page, total), nil
}

func countMatches(ctx context.Context, pool PoolOps, builder sq.SelectBuilder) (uint, error) {
	query, args, err := psql.Select("COUNT(*)").FromSelect(builder, "matched").ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int64
	if err := pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}

	return uint(count), nil
}

// selectOne returns notFound when the query yields no row.
func selectOne[Row any](ctx context.Context, pool PoolOps, scanner Scanner, builder sq.Sqlizer, notFound error) (Row, error) {
	var row Row

	query, args, err := builder.ToSql()
	if err != nil {
		return row, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return row, fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}
	defer rows.Close()

	if err := scanner.ScanOne(&row, rows, notFound); err != nil {
		return row, err
	}

	return row, nil
}
