package model

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	LiveKindLocations = "locations"
	LiveKindAlerts    = "alerts"
	LiveKindEvents    = "events"
)

func LocationTopic(deviceID DeviceID) string {
	return "gps-updates/" + deviceID.String()
}

func AlertTopic(deviceID DeviceID) string {
	return "alerts/" + deviceID.String()
}

func EventTopic(deviceID DeviceID) string {
	return "events/" + deviceID.String()
}

// LiveTopics resolves the kinds a viewer asked for into topics. No kinds
// means every kind.
func LiveTopics(deviceID DeviceID, kinds []string) ([]string, error) {
	if len(kinds) == 0 {
		kinds = []string{LiveKindLocations, LiveKindAlerts, LiveKindEvents}
	}

	topics := make([]string, 0, len(kinds))
	seen := make(map[string]struct{}, len(kinds))

	for _, kind := range kinds {
		var topic string

		switch kind {
		case LiveKindLocations:
			topic = LocationTopic(deviceID)
		case LiveKindAlerts:
			topic = AlertTopic(deviceID)
		case LiveKindEvents:
			topic = EventTopic(deviceID)
		default:
			return nil, fmt.Errorf("%w: unknown live kind %q", ErrValidation, kind)
		}

		if _, ok := seen[topic]; ok {
			continue
		}

		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}

	return topics, nil
}

// LiveUpdate is the payload pushed to live viewers. Data is the stored row.
type LiveUpdate struct {
	Kind        TelemetryKind `json:"kind"`
	DeviceID    DeviceID      `json:"deviceId"`
	Data        any           `json:"data"`
	PublishedAt time.Time     `json:"publishedAt"`
}

func EncodeLiveUpdate(kind TelemetryKind, deviceID DeviceID, data any) ([]byte, error) {
	payload, err := json.Marshal(LiveUpdate{
		Kind:        kind,
		DeviceID:    deviceID,
		Data:        data,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding %s update of device %s: %w", kind, deviceID, err)
	}

	return payload, nil
}
