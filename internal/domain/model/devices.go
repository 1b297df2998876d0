package model

import (
	"fmt"
	"strconv"
	"time"
)

// DeviceID is the stable external key of a tracked device.
type DeviceID int64

func ParseDeviceID(s string) (DeviceID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDeviceID, s)
	}

	return NewDeviceID(id)
}

func NewDeviceID(id int64) (DeviceID, error) {
	if id <= 0 {
		return 0, fmt.Errorf("%w: %d must be positive", ErrInvalidDeviceID, id)
	}

	return DeviceID(id), nil
}

func (d DeviceID) String() string {
	return strconv.FormatInt(int64(d), 10)
}

func (d DeviceID) IsZero() bool {
	return d == 0
}

func (d DeviceID) Int64() int64 {
	return int64(d)
}

// Device is owned by the registration service; the pipeline only reads it.
type Device struct {
	ID         DeviceID
	Identifier string
	Alias      string
	Active     bool
	OwnerID    int64
	CreatedAt  time.Time
}
