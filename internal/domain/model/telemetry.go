package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TelemetryKind string

const (
	TelemetryKindLocation TelemetryKind = "location"
	TelemetryKindEvent    TelemetryKind = "event"
	TelemetryKindAlert    TelemetryKind = "alert"
)

func (k TelemetryKind) IsValid() bool {
	switch k {
	case TelemetryKindLocation, TelemetryKindEvent, TelemetryKindAlert:
		return true
	default:
		return false
	}
}

func (k TelemetryKind) String() string {
	return string(k)
}

// TelemetryMessage is the queue payload. It carries no server-assigned
// identity; ids and stored timestamps are assigned on persistence.
type TelemetryMessage struct {
	ID            string        `json:"id"`
	Kind          TelemetryKind `json:"kind"`
	DeviceID      DeviceID      `json:"deviceId"`
	Latitude      float64       `json:"latitude,omitempty"`
	Longitude     float64       `json:"longitude,omitempty"`
	EventType     EventType     `json:"eventType,omitempty"`
	AlertType     AlertType     `json:"alertType,omitempty"`
	Message       string        `json:"message,omitempty"`
	ReportedAt    *time.Time    `json:"reportedAt,omitempty"`
	SubmittedAt   time.Time     `json:"submittedAt"`
	CorrelationID string        `json:"correlationId,omitempty"`
}

func newTelemetryMessage(kind TelemetryKind, deviceID DeviceID, reportedAt *time.Time) TelemetryMessage {
	msg := TelemetryMessage{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Kind:        kind,
		DeviceID:    deviceID,
		SubmittedAt: time.Now().UTC(),
	}

	if reportedAt != nil && !reportedAt.IsZero() {
		utc := reportedAt.UTC()
		msg.ReportedAt = &utc
	}

	return msg
}

func NewLocationMessage(deviceID DeviceID, latitude, longitude float64, reportedAt *time.Time) TelemetryMessage {
	msg := newTelemetryMessage(TelemetryKindLocation, deviceID, reportedAt)
	msg.Latitude = latitude
	msg.Longitude = longitude

	return msg
}

func NewEventMessage(deviceID DeviceID, eventType EventType, reportedAt *time.Time) TelemetryMessage {
	msg := newTelemetryMessage(TelemetryKindEvent, deviceID, reportedAt)
	msg.EventType = eventType

	return msg
}

func NewAlertMessage(deviceID DeviceID, alertType AlertType, message string) TelemetryMessage {
	msg := newTelemetryMessage(TelemetryKindAlert, deviceID, nil)
	msg.AlertType = alertType
	msg.Message = message

	return msg
}

// Validate checks the envelope only; payload rules belong to the stage of each kind.
func (m TelemetryMessage) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing message id", ErrInvalidMessage)
	}

	if !m.Kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	}

	if m.DeviceID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDeviceID, m.DeviceID)
	}

	return nil
}

// Timestamp returns the device-reported time, or zero when the store should assign it.
func (m TelemetryMessage) Timestamp() time.Time {
	if m.ReportedAt == nil {
		return time.Time{}
	}

	return *m.ReportedAt
}

// Receipt acknowledges that a message was accepted onto the queue. It does
// not mean the sample is queryable yet.
type Receipt struct {
	MessageID     string        `json:"messageId"`
	CorrelationID string        `json:"correlationId,omitempty"`
	Kind          TelemetryKind `json:"kind"`
	DeviceID      DeviceID      `json:"deviceId"`
	Partition     int           `json:"partition"`
	AcceptedAt    time.Time     `json:"acceptedAt"`
}
