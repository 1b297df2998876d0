package repos_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/architeacher/gpstracker/internal/adapters/repos"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

var (
	newEventsRepo repoFactory[*repos.EventsRepository] = repos.NewEventsRepository

	eventColumnsWithCount = []string{"id", "device_id", "event_type", "timestamp", "total_count"}
)

func TestEventsRepository_Insert(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		deviceID    model.DeviceID
		setupMock   func(mock pgxmock.PgxPoolIface)
		expectedErr error
	}{
		{
			name:     "stored",
			deviceID: 7,
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT insert_device_event($1, $2, $3)`)).
					WithArgs(int64(7), "power-on", (*time.Time)(nil)).
					WillReturnRows(pgxmock.NewRows([]string{"insert_device_event"}).AddRow(int64(11)))
			},
		},
		{
			name:     "unknown device",
			deviceID: 999,
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT insert_device_event($1, $2, $3)`)).
					WithArgs(int64(999), "power-on", (*time.Time)(nil)).
					WillReturnError(&pgconn.PgError{Code: "P0002"})
			},
			expectedErr: model.ErrDeviceNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runRepoTest(t, newEventsRepo, tc.setupMock, func(t *testing.T, repo *repos.EventsRepository) {
				id, err := repo.Insert(t.Context(), tc.deviceID, model.EventTypePowerOn, time.Time{})

				if tc.expectedErr != nil {
					require.ErrorIs(t, err, tc.expectedErr)

					return
				}

				require.NoError(t, err)
				require.Equal(t, model.EventID(11), id)
			})
		})
	}
}

func TestEventsRepository_ListRecent(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	cases := []struct {
		name      string
		eventType model.EventType
		setupMock func(mock pgxmock.PgxPoolIface)
		expected  int
	}{
		{
			name: "all event types",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta(
					`SELECT id, device_id, event_type, timestamp, COUNT(*) OVER() as total_count FROM device_events WHERE device_id = $1 ORDER BY timestamp DESC, id DESC LIMIT 20 OFFSET 0`,
				)).
					WithArgs(int64(7)).
					WillReturnRows(pgxmock.NewRows(eventColumnsWithCount).
						AddRow(int64(2), int64(7), "power-off", now, uint(2)).
						AddRow(int64(1), int64(7), "power-on", now.Add(-time.Hour), uint(2)))
			},
			expected: 2,
		},
		{
			name:      "filtered by type",
			eventType: model.EventTypeLowBattery,
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta(
					`SELECT id, device_id, event_type, timestamp, COUNT(*) OVER() as total_count FROM device_events WHERE device_id = $1 AND event_type = $2 ORDER BY timestamp DESC, id DESC LIMIT 20 OFFSET 0`,
				)).
					WithArgs(int64(7), "low-battery").
					WillReturnRows(pgxmock.NewRows(eventColumnsWithCount).
						AddRow(int64(5), int64(7), "low-battery", now, uint(1)))
			},
			expected: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runRepoTest(t, newEventsRepo, tc.setupMock, func(t *testing.T, repo *repos.EventsRepository) {
				result, err := repo.ListRecent(t.Context(), 7, tc.eventType, model.DefaultPage())
				require.NoError(t, err)
				require.Len(t, result.Items, tc.expected)

				if tc.eventType != "" {
					for _, event := range result.Items {
						require.Equal(t, tc.eventType, event.Type)
					}
				}
			})
		})
	}
}
