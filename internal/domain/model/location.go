package model

import (
	"fmt"
	"math"
	"time"
)

const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

type LocationID int64

// LocationSample is immutable once stored.
type LocationSample struct {
	ID        LocationID `json:"id"`
	DeviceID  DeviceID   `json:"deviceId"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Timestamp time.Time  `json:"timestamp"`
}

// ValidateCoordinates accepts the closed ranges [-90, 90] and [-180, 180].
func ValidateCoordinates(latitude, longitude float64) error {
	verrs := NewValidationErrors()

	if math.IsNaN(latitude) || latitude < MinLatitude || latitude > MaxLatitude {
		verrs.Add("latitude", fmt.Sprintf("latitude %v must be between %v and %v", latitude, MinLatitude, MaxLatitude), "OUT_OF_RANGE")
	}

	if math.IsNaN(longitude) || longitude < MinLongitude || longitude > MaxLongitude {
		verrs.Add("longitude", fmt.Sprintf("longitude %v must be between %v and %v", longitude, MinLongitude, MaxLongitude), "OUT_OF_RANGE")
	}

	if verrs.HasErrors() {
		return fmt.Errorf("%w: %w", ErrInvalidCoordinates, verrs)
	}

	return nil
}

// TimeRange is inclusive on both ends.
type TimeRange struct {
	From time.Time
	To   time.Time
}

func NewTimeRange(from, to time.Time) (TimeRange, error) {
	if from.After(to) {
		return TimeRange{}, ErrInvalidTimeRange
	}

	return TimeRange{From: from.UTC(), To: to.UTC()}, nil
}

// Bounds is a rectangular geofence. A device outside it triggers an
// out-of-bounds alert.
type Bounds struct {
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
}

func (b Bounds) Contains(latitude, longitude float64) bool {
	return latitude >= b.MinLatitude && latitude <= b.MaxLatitude &&
		longitude >= b.MinLongitude && longitude <= b.MaxLongitude
}

func (b Bounds) Validate() error {
	if b.MinLatitude > b.MaxLatitude || b.MinLongitude > b.MaxLongitude {
		return fmt.Errorf("%w: bounds minimum exceeds maximum", ErrInvalidCoordinates)
	}

	if err := ValidateCoordinates(b.MinLatitude, b.MinLongitude); err != nil {
		return err
	}

	return ValidateCoordinates(b.MaxLatitude, b.MaxLongitude)
}
