package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/pkg/logger"
)

const insertAlertQuery = "SELECT insert_alert($1, $2, $3)"

var (
	alertColumns = []string{"id", "device_id", "message", "alert_type", "resolved", "created_at", "resolved_at"}

	errAlreadyResolved = errors.New("alert already resolved")
)

type (
	AlertsRepository struct {
		pool    PoolOps
		scanner Scanner
		logger  logger.Logger
	}

	alertRow struct {
		ID         int64      `db:"id"`
		DeviceID   int64      `db:"device_id"`
		Message    string     `db:"message"`
		AlertType  string     `db:"alert_type"`
		Resolved   bool       `db:"resolved"`
		CreatedAt  time.Time  `db:"created_at"`
		ResolvedAt *time.Time `db:"resolved_at"`
	}

	alertRowWithCount struct {
		alertRow
		TotalCount uint `db:"total_count"`
	}
)

func NewAlertsRepository(pool PoolOps, scanner Scanner, log logger.Logger) *AlertsRepository {
	return &AlertsRepository{
		pool:    pool,
		scanner: scanner,
		logger:  log,
	}
}

func (r *AlertsRepository) Insert(
	ctx context.Context,
	deviceID model.DeviceID,
	alertType model.AlertType,
	message string,
) (model.AlertID, error) {
	var id int64

	if err := r.pool.QueryRow(ctx, insertAlertQuery, deviceID.Int64(), alertType.String(), message).Scan(&id); err != nil {
		return 0, mapWriteError(err, deviceID)
	}

	return model.AlertID(id), nil
}

func (r *AlertsRepository) GetByID(ctx context.Context, id model.AlertID) (*model.Alert, error) {
	row, err := selectOne[alertRow](
		ctx, r.pool, r.scanner,
		psql.Select(alertColumns...).
			From(alertsTable).
			Where(sq.Eq{"id": id.Int64()}).
			Limit(1),
		fmt.Errorf("%w: %s", model.ErrAlertNotFound, id),
	)
	if err != nil {
		return nil, err
	}

	alert := row.toDomain()

	return &alert, nil
}

// Resolve only touches unresolved rows, so resolved_at keeps the first
// resolution. When nothing changed the stored row is returned as is.
func (r *AlertsRepository) Resolve(ctx context.Context, id model.AlertID) (*model.Alert, bool, error) {
	row, err := selectOne[alertRow](
		ctx, r.pool, r.scanner,
		psql.Update(alertsTable).
			Set("resolved", true).
			Set("resolved_at", sq.Expr("now()")).
			Where(sq.Eq{"id": id.Int64()}).
			Where(sq.Eq{"resolved": false}).
			Suffix("RETURNING id, device_id, message, alert_type, resolved, created_at, resolved_at"),
		errAlreadyResolved,
	)

	switch {
	case err == nil:
		alert := row.toDomain()

		return &alert, true, nil

	case errors.Is(err, errAlreadyResolved):
		alert, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, false, err
		}

		r.logger.Debug().Str("alert_id", id.String()).Msg("alert was already resolved")

		return alert, false, nil

	default:
		return nil, false, err
	}
}

func (r *AlertsRepository) ListForDevice(
	ctx context.Context,
	deviceID model.DeviceID,
	resolved *bool,
	page model.Page,
) (model.PageResult[model.Alert], error) {
	builder := psql.Select(append(alertColumns, totalCountColumn)...).
		From(alertsTable).
		Where(sq.Eq{"device_id": deviceID.Int64()})

	if resolved != nil {
		builder = builder.Where(sq.Eq{"resolved": *resolved})
	}

	builder = builder.OrderBy("created_at DESC", "id DESC")

	return selectPage(ctx, r.pool, r.scanner, builder, page, alertRowWithCount.total, alertRowWithCount.toDomain)
}

func (r *AlertsRepository) ListUnresolved(ctx context.Context, page model.Page) (model.PageResult[model.Alert], error) {
	builder := psql.Select(append(alertColumns, totalCountColumn)...).
		From(alertsTable).
		Where(sq.Eq{"resolved": false}).
		OrderBy("created_at DESC", "id DESC")

	return selectPage(ctx, r.pool, r.scanner, builder, page, alertRowWithCount.total, alertRowWithCount.toDomain)
}

func (row alertRow) toDomain() model.Alert {
	alert := model.Alert{
		ID:        model.AlertID(row.ID),
		DeviceID:  model.DeviceID(row.DeviceID),
		Message:   row.Message,
		Type:      model.AlertType(row.AlertType),
		Resolved:  row.Resolved,
		CreatedAt: row.CreatedAt.UTC(),
	}

	if row.ResolvedAt != nil {
		resolvedAt := row.ResolvedAt.UTC()
		alert.ResolvedAt = &resolvedAt
	}

	return alert
}

func (row alertRowWithCount) total() uint {
	return row.TotalCount
}

func (row alertRowWithCount) toDomain() model.Alert {
	return row.alertRow.toDomain()
}
