package pipeline

import (
	"context"
	"fmt"

	"github.com/architeacher/gpstracker/internal/domain/model"
)

// OutOfBoundsRule raises a location-out-of-bounds alert for every stored
// sample outside the configured rectangle.
type OutOfBoundsRule struct {
	bounds model.Bounds
}

func NewOutOfBoundsRule(bounds model.Bounds) *OutOfBoundsRule {
	return &OutOfBoundsRule{bounds: bounds}
}

func (r *OutOfBoundsRule) Evaluate(_ context.Context, record Record) []model.TelemetryMessage {
	sample, ok := record.Data.(model.LocationSample)
	if !ok || r.bounds.Contains(sample.Latitude, sample.Longitude) {
		return nil
	}

	message := fmt.Sprintf(
		"location (%.6f, %.6f) recorded at %s is outside the allowed area",
		sample.Latitude, sample.Longitude, sample.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	)

	return []model.TelemetryMessage{
		model.NewAlertMessage(sample.DeviceID, model.AlertTypeLocationOutOfBounds, message),
	}
}
