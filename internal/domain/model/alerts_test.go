package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func TestAlert_ResolveFirstResolutionWins(t *testing.T) {
	t.Parallel()

	alert := &model.Alert{ID: 1, DeviceID: 7, Type: model.AlertTypeLocationOutOfBounds, CreatedAt: time.Now().UTC()}
	first := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	require.True(t, alert.Resolve(first))
	require.True(t, alert.Resolved)
	require.Equal(t, first, *alert.ResolvedAt)

	require.False(t, alert.Resolve(first.Add(time.Hour)))
	require.Equal(t, first, *alert.ResolvedAt)
}

func TestValidateAlert(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		alertType model.AlertType
		message   string
		fields    []string
	}{
		{name: "valid", alertType: model.AlertTypeLocationOutOfBounds, message: "left the depot"},
		{name: "unknown type", alertType: "meteor", message: "x", fields: []string{"type"}},
		{name: "blank message", alertType: model.AlertTypeCustom, message: "   ", fields: []string{"message"}},
		{name: "too long", alertType: model.AlertTypeCustom, message: strings.Repeat("a", model.MaxAlertMessageLength+1), fields: []string{"message"}},
		{name: "both invalid", alertType: "", message: "", fields: []string{"type", "message"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := model.ValidateAlert(tc.alertType, tc.message)
			if len(tc.fields) == 0 {
				require.NoError(t, err)

				return
			}

			var verrs *model.ValidationErrors
			require.ErrorAs(t, err, &verrs)

			fields := make([]string, 0, len(verrs.Errors))
			for _, e := range verrs.Errors {
				fields = append(fields, e.Field)
			}

			require.Equal(t, tc.fields, fields)
		})
	}
}

func TestParseTypes(t *testing.T) {
	t.Parallel()

	alertType, err := model.ParseAlertType("location-out-of-bounds")
	require.NoError(t, err)
	require.Equal(t, model.AlertTypeLocationOutOfBounds, alertType)

	_, err = model.ParseAlertType("nope")
	require.ErrorIs(t, err, model.ErrInvalidAlertType)

	eventType, err := model.ParseEventType("power-on")
	require.NoError(t, err)
	require.Equal(t, model.EventTypePowerOn, eventType)

	_, err = model.ParseEventType("reboot")
	require.ErrorIs(t, err, model.ErrInvalidEventType)

	alertID, err := model.ParseAlertID("12")
	require.NoError(t, err)
	require.Equal(t, model.AlertID(12), alertID)

	_, err = model.ParseAlertID("-1")
	require.ErrorIs(t, err, model.ErrInvalidAlertID)
}
