package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const MaxAlertMessageLength = 1024

type AlertType string

const (
	AlertTypeLocationOutOfBounds AlertType = "location-out-of-bounds"
	AlertTypeSpeeding            AlertType = "speeding"
	AlertTypeLowBattery          AlertType = "low-battery"
	AlertTypeDeviceOffline       AlertType = "device-offline"
	AlertTypeCustom              AlertType = "custom"
)

var alertTypes = map[AlertType]struct{}{
	AlertTypeLocationOutOfBounds: {},
	AlertTypeSpeeding:            {},
	AlertTypeLowBattery:          {},
	AlertTypeDeviceOffline:       {},
	AlertTypeCustom:              {},
}

func ParseAlertType(s string) (AlertType, error) {
	t := AlertType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAlertType, s)
	}

	return t, nil
}

func (t AlertType) IsValid() bool {
	_, ok := alertTypes[t]

	return ok
}

func (t AlertType) String() string {
	return string(t)
}

type AlertID int64

func ParseAlertID(s string) (AlertID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAlertID, s)
	}

	return AlertID(id), nil
}

func (a AlertID) String() string {
	return strconv.FormatInt(int64(a), 10)
}

func (a AlertID) Int64() int64 {
	return int64(a)
}

// Alert moves from unresolved to resolved exactly once and is never deleted.
type Alert struct {
	ID         AlertID    `json:"id"`
	DeviceID   DeviceID   `json:"deviceId"`
	Message    string     `json:"message"`
	Type       AlertType  `json:"type"`
	Resolved   bool       `json:"resolved"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// ValidateAlert checks the caller-supplied fields of a new alert.
func ValidateAlert(alertType AlertType, message string) error {
	verrs := NewValidationErrors()

	if !alertType.IsValid() {
		verrs.Add("type", fmt.Sprintf("unknown alert type %q", alertType), "INVALID_ALERT_TYPE")
	}

	trimmed := strings.TrimSpace(message)
	switch {
	case trimmed == "":
		verrs.Add("message", "message must not be blank", "REQUIRED")
	case len(trimmed) > MaxAlertMessageLength:
		verrs.Add("message", fmt.Sprintf("message must not exceed %d characters", MaxAlertMessageLength), "TOO_LONG")
	}

	return verrs.ErrOrNil()
}

// Resolve marks the alert resolved at the given instant. It reports false
// and leaves ResolvedAt untouched when the alert was already resolved.
func (a *Alert) Resolve(at time.Time) bool {
	if a.Resolved {
		return false
	}

	resolvedAt := at.UTC()
	a.Resolved = true
	a.ResolvedAt = &resolvedAt

	return true
}
