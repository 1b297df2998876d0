package repos

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/pkg/logger"
)

const insertEventQuery = "SELECT insert_device_event($1, $2, $3)"

var eventColumns = []string{"id", "device_id", "event_type", "timestamp"}

type (
	EventsRepository struct {
		pool    PoolOps
		scanner Scanner
		logger  logger.Logger
	}

	eventRow struct {
		ID        int64     `db:"id"`
		DeviceID  int64     `db:"device_id"`
		EventType string    `db:"event_type"`
		Timestamp time.Time `db:"timestamp"`
	}

	eventRowWithCount struct {
		eventRow
		TotalCount uint `db:"total_count"`
	}
)

func NewEventsRepository(pool PoolOps, scanner Scanner, log logger.Logger) *EventsRepository {
	return &EventsRepository{
		pool:    pool,
		scanner: scanner,
		logger:  log,
	}
}

func (r *EventsRepository) Insert(
	ctx context.Context,
	deviceID model.DeviceID,
	eventType model.EventType,
	timestamp time.Time,
) (model.EventID, error) {
	var id int64

	err := r.pool.QueryRow(ctx, insertEventQuery, deviceID.Int64(), eventType.String(), nullableTime(timestamp)).Scan(&id)
	if err != nil {
		return 0, mapWriteError(err, deviceID)
	}

	return model.EventID(id), nil
}

func (r *EventsRepository) GetByID(ctx context.Context, id model.EventID) (*model.DeviceEvent, error) {
	row, err := selectOne[eventRow](
		ctx, r.pool, r.scanner,
		psql.Select(eventColumns...).
			From(eventsTable).
			Where(sq.Eq{"id": int64(id)}).
			Limit(1),
		fmt.Errorf("%w: event %d", model.ErrDatabaseQuery, id),
	)
	if err != nil {
		return nil, err
	}

	event := row.toDomain()

	return &event, nil
}

func (r *EventsRepository) ListRecent(
	ctx context.Context,
	deviceID model.DeviceID,
	eventType model.EventType,
	page model.Page,
) (model.PageResult[model.DeviceEvent], error) {
	builder := psql.Select(append(eventColumns, totalCountColumn)...).
		From(eventsTable).
		Where(sq.Eq{"device_id": deviceID.Int64()})

	if eventType != "" {
		builder = builder.Where(sq.Eq{"event_type": eventType.String()})
	}

	builder = builder.OrderBy("timestamp DESC", "id DESC")

	return selectPage(ctx, r.pool, r.scanner, builder, page, eventRowWithCount.total, eventRowWithCount.toDomain)
}

func (row eventRow) toDomain() model.DeviceEvent {
	return model.DeviceEvent{
		ID:        model.EventID(row.ID),
		DeviceID:  model.DeviceID(row.DeviceID),
		Type:      model.EventType(row.EventType),
		Timestamp: row.Timestamp.UTC(),
	}
}

func (row eventRowWithCount) total() uint {
	return row.TotalCount
}

func (row eventRowWithCount) toDomain() model.DeviceEvent {
	return row.eventRow.toDomain()
}
