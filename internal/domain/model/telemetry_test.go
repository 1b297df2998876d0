package model_test

import (
	"testing"
	"time"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func TestNewLocationMessage(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC()
	msg := model.NewLocationMessage(7, 40.7128, -74.0060, nil)

	require.NoError(t, msg.Validate())
	require.NotEmpty(t, msg.ID)
	require.Equal(t, model.TelemetryKindLocation, msg.Kind)
	require.Equal(t, model.DeviceID(7), msg.DeviceID)
	require.InDelta(t, 40.7128, msg.Latitude, 0)
	require.InDelta(t, -74.0060, msg.Longitude, 0)
	require.Nil(t, msg.ReportedAt)
	require.True(t, msg.Timestamp().IsZero())
	require.False(t, msg.SubmittedAt.Before(before))
}

func TestNewEventMessage_NormalisesReportedAt(t *testing.T) {
	t.Parallel()

	reported := time.Date(2025, 6, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	msg := model.NewEventMessage(7, model.EventTypePowerOn, &reported)

	require.Equal(t, time.UTC, msg.Timestamp().Location())
	require.True(t, reported.Equal(msg.Timestamp()))
}

func TestTelemetryMessage_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		mutate      func(m *model.TelemetryMessage)
		expectedErr error
	}{
		{name: "missing id", mutate: func(m *model.TelemetryMessage) { m.ID = "" }, expectedErr: model.ErrInvalidMessage},
		{name: "unknown kind", mutate: func(m *model.TelemetryMessage) { m.Kind = "speed" }, expectedErr: model.ErrInvalidMessage},
		{name: "zero device", mutate: func(m *model.TelemetryMessage) { m.DeviceID = 0 }, expectedErr: model.ErrInvalidDeviceID},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			msg := model.NewAlertMessage(7, model.AlertTypeCustom, "check")
			tc.mutate(&msg)

			require.ErrorIs(t, msg.Validate(), tc.expectedErr)
		})
	}
}

func TestNewPageResult(t *testing.T) {
	t.Parallel()

	page, err := model.NewPage(1, 0)
	require.NoError(t, err)
	require.Equal(t, uint(model.DefaultPageSize), page.Size)
	require.Equal(t, uint64(20), page.Offset())

	result := model.NewPageResult[int](nil, page, 45)
	require.Empty(t, result.Items)
	require.NotNil(t, result.Items)
	require.Equal(t, uint(3), result.TotalPages)
	require.True(t, result.HasNext)
	require.True(t, result.HasPrevious)

	_, err = model.NewPage(0, model.MaxPageSize+1)
	require.ErrorIs(t, err, model.ErrInvalidPagination)
}
