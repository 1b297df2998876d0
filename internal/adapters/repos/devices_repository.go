package repos

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/pkg/logger"
)

const deviceExistsQuery = "SELECT EXISTS (SELECT 1 FROM devices WHERE id = $1)"

type (
	// DevicesRepository reads the device registry owned by the registration service.
	DevicesRepository struct {
		pool    PoolOps
		scanner Scanner
		logger  logger.Logger
	}

	deviceRow struct {
		ID         int64     `db:"id"`
		Identifier string    `db:"identifier"`
		Alias      string    `db:"alias"`
		Active     bool      `db:"active"`
		OwnerID    *int64    `db:"owner_id"`
		CreatedAt  time.Time `db:"created_at"`
	}
)

func NewDevicesRepository(pool PoolOps, scanner Scanner, log logger.Logger) *DevicesRepository {
	return &DevicesRepository{
		pool:    pool,
		scanner: scanner,
		logger:  log,
	}
}

func (r *DevicesRepository) Exists(ctx context.Context, id model.DeviceID) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, deviceExistsQuery, id.Int64()).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}

	return exists, nil
}

func (r *DevicesRepository) GetByID(ctx context.Context, id model.DeviceID) (*model.Device, error) {
	row, err := selectOne[deviceRow](
		ctx, r.pool, r.scanner,
		psql.Select("id", "identifier", "alias", "active", "owner_id", "created_at").
			From(devicesTable).
			Where(sq.Eq{"id": id.Int64()}).
			Limit(1),
		fmt.Errorf("%w: %s", model.ErrDeviceNotFound, id),
	)
	if err != nil {
		return nil, err
	}

	device := &model.Device{
		ID:         model.DeviceID(row.ID),
		Identifier: row.Identifier,
		Alias:      row.Alias,
		Active:     row.Active,
		CreatedAt:  row.CreatedAt,
	}

	if row.OwnerID != nil {
		device.OwnerID = *row.OwnerID
	}

	return device, nil
}

func (r *DevicesRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
