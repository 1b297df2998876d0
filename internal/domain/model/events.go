package model

import (
	"fmt"
	"time"
)

type EventType string

const (
	EventTypePowerOn        EventType = "power-on"
	EventTypePowerOff       EventType = "power-off"
	EventTypeLocationUpdate EventType = "location-update"
	EventTypeLowBattery     EventType = "low-battery"
	EventTypeIgnitionOn     EventType = "ignition-on"
	EventTypeIgnitionOff    EventType = "ignition-off"
)

var eventTypes = map[EventType]struct{}{
	EventTypePowerOn:        {},
	EventTypePowerOff:       {},
	EventTypeLocationUpdate: {},
	EventTypeLowBattery:     {},
	EventTypeIgnitionOn:     {},
	EventTypeIgnitionOff:    {},
}

func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEventType, s)
	}

	return t, nil
}

func (t EventType) IsValid() bool {
	_, ok := eventTypes[t]

	return ok
}

func (t EventType) String() string {
	return string(t)
}

type EventID int64

type DeviceEvent struct {
	ID        EventID   `json:"id"`
	DeviceID  DeviceID  `json:"deviceId"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}
