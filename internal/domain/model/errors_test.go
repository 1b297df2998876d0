package model_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		validation bool
		notFound   bool
		transient  bool
	}{
		{name: "nil", err: nil},
		{name: "bad coordinates", err: model.ValidateCoordinates(100, 0), validation: true},
		{name: "unknown device", err: fmt.Errorf("checking device: %w", model.ErrDeviceNotFound), notFound: true},
		{name: "unknown alert", err: model.ErrAlertNotFound, notFound: true},
		{name: "database query", err: fmt.Errorf("%w: connection reset", model.ErrDatabaseQuery), transient: true},
		{name: "queue down", err: model.ErrQueueUnavailable, transient: true},
		{name: "deadline", err: context.DeadlineExceeded, transient: true},
		{name: "unclassified", err: errors.New("boom")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.validation, model.IsValidation(tc.err))
			require.Equal(t, tc.notFound, model.IsNotFound(tc.err))
			require.Equal(t, tc.transient, model.IsTransient(tc.err))
		})
	}
}

func TestValidationErrors(t *testing.T) {
	t.Parallel()

	verrs := model.NewValidationErrors()
	require.NoError(t, verrs.ErrOrNil())

	verrs.Add("latitude", "latitude out of range", "OUT_OF_RANGE")
	verrs.Add("longitude", "longitude out of range", "OUT_OF_RANGE")

	err := verrs.ErrOrNil()
	require.ErrorIs(t, err, model.ErrValidation)
	require.Equal(t, "latitude out of range; longitude out of range", err.Error())
}
