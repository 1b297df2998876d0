package pipeline

import (
	"context"
	"fmt"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
)

func requireDevice(ctx context.Context, devices ports.DevicesRepository, deviceID model.DeviceID) error {
	exists, err := devices.Exists(ctx, deviceID)
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("%w: %s", model.ErrDeviceNotFound, deviceID)
	}

	return nil
}

type LocationStage struct {
	devices   ports.DevicesRepository
	locations ports.LocationsRepository
	cacheKeys func(model.DeviceID) []string
}

// NewLocationStage takes the cache key layout of the read cache, so the
// stage can drop a device's entries without knowing how they are stored.
func NewLocationStage(devices ports.DevicesRepository, locations ports.LocationsRepository, cacheKeys func(model.DeviceID) []string) *LocationStage {
	return &LocationStage{
		devices:   devices,
		locations: locations,
		cacheKeys: cacheKeys,
	}
}

func (s *LocationStage) Kind() model.TelemetryKind {
	return model.TelemetryKindLocation
}

func (s *LocationStage) Validate(ctx context.Context, msg model.TelemetryMessage) error {
	if err := model.ValidateCoordinates(msg.Latitude, msg.Longitude); err != nil {
		return err
	}

	return requireDevice(ctx, s.devices, msg.DeviceID)
}

// Persist reads the row back by ID because the insert procedure only returns
// the generated identity.
func (s *LocationStage) Persist(ctx context.Context, msg model.TelemetryMessage) (Record, error) {
	id, err := s.locations.Insert(ctx, msg.DeviceID, msg.Latitude, msg.Longitude, msg.Timestamp())
	if err != nil {
		return Record{}, err
	}

	sample, err := s.locations.GetByID(ctx, id)
	if err != nil {
		return Record{}, fmt.Errorf("%w: reading back location %d: %w", model.ErrDatabaseQuery, id, err)
	}

	return Record{Kind: model.TelemetryKindLocation, DeviceID: sample.DeviceID, Data: *sample}, nil
}

func (s *LocationStage) CacheKeysFor(record Record) []string {
	if s.cacheKeys == nil {
		return nil
	}

	return s.cacheKeys(record.DeviceID)
}

func (s *LocationStage) TopicFor(record Record) string {
	return model.LocationTopic(record.DeviceID)
}

type EventStage struct {
	devices ports.DevicesRepository
	events  ports.EventsRepository
}

func NewEventStage(devices ports.DevicesRepository, events ports.EventsRepository) *EventStage {
	return &EventStage{devices: devices, events: events}
}

func (s *EventStage) Kind() model.TelemetryKind {
	return model.TelemetryKindEvent
}

func (s *EventStage) Validate(ctx context.Context, msg model.TelemetryMessage) error {
	if !msg.EventType.IsValid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidEventType, msg.EventType)
	}

	return requireDevice(ctx, s.devices, msg.DeviceID)
}

func (s *EventStage) Persist(ctx context.Context, msg model.TelemetryMessage) (Record, error) {
	id, err := s.events.Insert(ctx, msg.DeviceID, msg.EventType, msg.Timestamp())
	if err != nil {
		return Record{}, err
	}

	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return Record{}, err
	}

	return Record{Kind: model.TelemetryKindEvent, DeviceID: event.DeviceID, Data: *event}, nil
}

// CacheKeysFor returns nothing; events are never cached.
func (s *EventStage) CacheKeysFor(Record) []string {
	return nil
}

func (s *EventStage) TopicFor(record Record) string {
	return model.EventTopic(record.DeviceID)
}

type AlertStage struct {
	devices ports.DevicesRepository
	alerts  ports.AlertsRepository
}

func NewAlertStage(devices ports.DevicesRepository, alerts ports.AlertsRepository) *AlertStage {
	return &AlertStage{devices: devices, alerts: alerts}
}

func (s *AlertStage) Kind() model.TelemetryKind {
	return model.TelemetryKindAlert
}

func (s *AlertStage) Validate(ctx context.Context, msg model.TelemetryMessage) error {
	if err := model.ValidateAlert(msg.AlertType, msg.Message); err != nil {
		return err
	}

	return requireDevice(ctx, s.devices, msg.DeviceID)
}

func (s *AlertStage) Persist(ctx context.Context, msg model.TelemetryMessage) (Record, error) {
	id, err := s.alerts.Insert(ctx, msg.DeviceID, msg.AlertType, msg.Message)
	if err != nil {
		return Record{}, err
	}

	alert, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return Record{}, fmt.Errorf("%w: reading back alert %d: %w", model.ErrDatabaseQuery, id, err)
	}

	return Record{Kind: model.TelemetryKindAlert, DeviceID: alert.DeviceID, Data: *alert}, nil
}

func (s *AlertStage) CacheKeysFor(Record) []string {
	return nil
}

func (s *AlertStage) TopicFor(record Record) string {
	return model.AlertTopic(record.DeviceID)
}
