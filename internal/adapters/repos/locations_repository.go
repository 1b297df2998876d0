package repos

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/pkg/logger"
)

const insertLocationQuery = "SELECT insert_location($1, $2, $3, $4)"

var locationColumns = []string{"id", "device_id", "latitude", "longitude", "timestamp"}

type (
	LocationsRepository struct {
		pool    PoolOps
		scanner Scanner
		logger  logger.Logger
	}

	locationRow struct {
		ID        int64     `db:"id"`
		DeviceID  int64     `db:"device_id"`
		Latitude  float64   `db:"latitude"`
		Longitude float64   `db:"longitude"`
		Timestamp time.Time `db:"timestamp"`
	}

	locationRowWithCount struct {
		locationRow
		TotalCount uint `db:"total_count"`
	}
)

func NewLocationsRepository(pool PoolOps, scanner Scanner, log logger.Logger) *LocationsRepository {
	return &LocationsRepository{
		pool:    pool,
		scanner: scanner,
		logger:  log,
	}
}

// Insert goes through insert_location, which re-checks that the device exists.
func (r *LocationsRepository) Insert(
	ctx context.Context,
	deviceID model.DeviceID,
	latitude, longitude float64,
	timestamp time.Time,
) (model.LocationID, error) {
	var id int64

	err := r.pool.QueryRow(ctx, insertLocationQuery, deviceID.Int64(), latitude, longitude, nullableTime(timestamp)).Scan(&id)
	if err != nil {
		return 0, mapWriteError(err, deviceID)
	}

	return model.LocationID(id), nil
}

func (r *LocationsRepository) GetByID(ctx context.Context, id model.LocationID) (*model.LocationSample, error) {
	row, err := selectOne[locationRow](
		ctx, r.pool, r.scanner,
		psql.Select(locationColumns...).
			From(locationsTable).
			Where(sq.Eq{"id": int64(id)}).
			Limit(1),
		fmt.Errorf("%w: location %d", model.ErrLocationNotFound, id),
	)
	if err != nil {
		return nil, err
	}

	sample := row.toDomain()

	return &sample, nil
}

func (r *LocationsRepository) LatestForDevice(ctx context.Context, deviceID model.DeviceID) (*model.LocationSample, error) {
	row, err := selectOne[locationRow](
		ctx, r.pool, r.scanner,
		psql.Select(locationColumns...).
			From(locationsTable).
			Where(sq.Eq{"device_id": deviceID.Int64()}).
			OrderBy("timestamp DESC", "id DESC").
			Limit(1),
		fmt.Errorf("%w: device %s", model.ErrLocationNotFound, deviceID),
	)
	if err != nil {
		return nil, err
	}

	sample := row.toDomain()

	return &sample, nil
}

func (r *LocationsRepository) ListForDevice(
	ctx context.Context,
	deviceID model.DeviceID,
	page model.Page,
) (model.PageResult[model.LocationSample], error) {
	builder := psql.Select(append(locationColumns, totalCountColumn)...).
		From(locationsTable).
		Where(sq.Eq{"device_id": deviceID.Int64()}).
		OrderBy("timestamp DESC", "id DESC")

	return selectPage(ctx, r.pool, r.scanner, builder, page, locationRowWithCount.total, locationRowWithCount.toDomain)
}

func (r *LocationsRepository) ListForDeviceInRange(
	ctx context.Context,
	deviceID model.DeviceID,
	timeRange model.TimeRange,
	page model.Page,
) (model.PageResult[model.LocationSample], error) {
	builder := psql.Select(append(locationColumns, totalCountColumn)...).
		From(locationsTable).
		Where(sq.Eq{"device_id": deviceID.Int64()}).
		Where(sq.GtOrEq{"timestamp": timeRange.From}).
		Where(sq.LtOrEq{"timestamp": timeRange.To}).
		OrderBy("timestamp DESC", "id DESC")

	return selectPage(ctx, r.pool, r.scanner, builder, page, locationRowWithCount.total, locationRowWithCount.toDomain)
}

func (row locationRow) toDomain() model.LocationSample {
	return model.LocationSample{
		ID:        model.LocationID(row.ID),
		DeviceID:  model.DeviceID(row.DeviceID),
		Latitude:  row.Latitude,
		Longitude: row.Longitude,
		Timestamp: row.Timestamp.UTC(),
	}
}

func (row locationRowWithCount) total() uint {
	return row.TotalCount
}

func (row locationRowWithCount) toDomain() model.LocationSample {
	return row.locationRow.toDomain()
}
