// Package testutil provides in-memory collaborators and container helpers
// for tests across the tracker's packages.
package testutil

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
)

// Store is an in-memory persistence store with the same device-exists and
// ordering rules as the PostgreSQL schema.
type Store struct {
	mu sync.Mutex

	devices   map[model.DeviceID]model.Device
	locations []model.LocationSample
	events    []model.DeviceEvent
	alerts    []model.Alert

	nextLocationID model.LocationID
	nextEventID    model.EventID
	nextAlertID    model.AlertID

	failures    int
	failureErr  error
	insertCalls int

	Now func() time.Time
}

func NewStore(deviceIDs ...model.DeviceID) *Store {
	s := &Store{
		devices: make(map[model.DeviceID]model.Device, len(deviceIDs)),
		Now:     func() time.Time { return time.Now().UTC() },
	}

	for _, id := range deviceIDs {
		s.AddDevice(id)
	}

	return s
}

func (s *Store) AddDevice(id model.DeviceID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.devices[id] = model.Device{
		ID:         id,
		Identifier: fmt.Sprintf("device-%d", id),
		Active:     true,
		CreatedAt:  s.Now(),
	}
}

// FailInserts makes the next n inserts fail with err.
func (s *Store) FailInserts(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures = n
	s.failureErr = err
}

func (s *Store) InsertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertCalls
}

func (s *Store) Locations() []model.LocationSample {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.locations)
}

func (s *Store) Events() []model.DeviceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.events)
}

func (s *Store) Alerts() []model.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.alerts)
}

func (s *Store) DevicesRepository() ports.DevicesRepository { return devicesView{s} }

func (s *Store) LocationsRepository() ports.LocationsRepository { return locationsView{s} }

func (s *Store) EventsRepository() ports.EventsRepository { return eventsView{s} }

func (s *Store) AlertsRepository() ports.AlertsRepository { return alertsView{s} }

// beginInsert runs under s.mu.
func (s *Store) beginInsert(deviceID model.DeviceID) error {
	s.insertCalls++

	if s.failures > 0 {
		s.failures--

		return s.failureErr
	}

	if _, ok := s.devices[deviceID]; !ok {
		return fmt.Errorf("%w: %s", model.ErrDeviceNotFound, deviceID)
	}

	return nil
}

func (s *Store) timestampOrNow(ts time.Time) time.Time {
	if ts.IsZero() {
		return s.Now()
	}

	return ts.UTC()
}

type devicesView struct{ *Store }

func (v devicesView) Exists(_ context.Context, id model.DeviceID) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	_, ok := v.devices[id]

	return ok, nil
}

func (v devicesView) GetByID(_ context.Context, id model.DeviceID) (*model.Device, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	device, ok := v.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrDeviceNotFound, id)
	}

	return &device, nil
}

type locationsView struct{ *Store }

func (v locationsView) Insert(_ context.Context, deviceID model.DeviceID, latitude, longitude float64, timestamp time.Time) (model.LocationID, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.beginInsert(deviceID); err != nil {
		return 0, err
	}

	v.nextLocationID++
	v.locations = append(v.locations, model.LocationSample{
		ID:        v.nextLocationID,
		DeviceID:  deviceID,
		Latitude:  latitude,
		Longitude: longitude,
		Timestamp: v.timestampOrNow(timestamp),
	})

	return v.nextLocationID, nil
}

func (v locationsView) GetByID(_ context.Context, id model.LocationID) (*model.LocationSample, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, sample := range v.locations {
		if sample.ID == id {
			return &sample, nil
		}
	}

	return nil, fmt.Errorf("%w: location %d", model.ErrLocationNotFound, id)
}

func (v locationsView) LatestForDevice(ctx context.Context, deviceID model.DeviceID) (*model.LocationSample, error) {
	page, err := v.ListForDevice(ctx, deviceID, model.Page{Size: 1})
	if err != nil {
		return nil, err
	}

	if len(page.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrLocationNotFound, deviceID)
	}

	return &page.Items[0], nil
}

func (v locationsView) ListForDevice(_ context.Context, deviceID model.DeviceID, page model.Page) (model.PageResult[model.LocationSample], error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	return paginate(newestLocations(v.locations, func(sample model.LocationSample) bool {
		return sample.DeviceID == deviceID
	}), page), nil
}

func (v locationsView) ListForDeviceInRange(_ context.Context, deviceID model.DeviceID, timeRange model.TimeRange, page model.Page) (model.PageResult[model.LocationSample], error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	return paginate(newestLocations(v.locations, func(sample model.LocationSample) bool {
		return sample.DeviceID == deviceID &&
			!sample.Timestamp.Before(timeRange.From) &&
			!sample.Timestamp.After(timeRange.To)
	}), page), nil
}

type eventsView struct{ *Store }

func (v eventsView) Insert(_ context.Context, deviceID model.DeviceID, eventType model.EventType, timestamp time.Time) (model.EventID, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.beginInsert(deviceID); err != nil {
		return 0, err
	}

	v.nextEventID++
	v.events = append(v.events, model.DeviceEvent{
		ID:        v.nextEventID,
		DeviceID:  deviceID,
		Type:      eventType,
		Timestamp: v.timestampOrNow(timestamp),
	})

	return v.nextEventID, nil
}

func (v eventsView) GetByID(_ context.Context, id model.EventID) (*model.DeviceEvent, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, event := range v.events {
		if event.ID == id {
			return &event, nil
		}
	}

	return nil, fmt.Errorf("%w: event %d missing", model.ErrDatabaseQuery, id)
}

func (v eventsView) ListRecent(_ context.Context, deviceID model.DeviceID, eventType model.EventType, page model.Page) (model.PageResult[model.DeviceEvent], error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var matched []model.DeviceEvent
	for _, event := range v.events {
		if event.DeviceID == deviceID && (eventType == "" || event.Type == eventType) {
			matched = append(matched, event)
		}
	}

	slices.SortFunc(matched, func(a, b model.DeviceEvent) int {
		return cmp.Or(b.Timestamp.Compare(a.Timestamp), cmp.Compare(b.ID, a.ID))
	})

	return paginate(matched, page), nil
}

type alertsView struct{ *Store }

func (v alertsView) Insert(_ context.Context, deviceID model.DeviceID, alertType model.AlertType, message string) (model.AlertID, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.beginInsert(deviceID); err != nil {
		return 0, err
	}

	v.nextAlertID++
	v.alerts = append(v.alerts, model.Alert{
		ID:        v.nextAlertID,
		DeviceID:  deviceID,
		Message:   message,
		Type:      alertType,
		CreatedAt: v.Now(),
	})

	return v.nextAlertID, nil
}

func (v alertsView) GetByID(_ context.Context, id model.AlertID) (*model.Alert, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, alert := range v.alerts {
		if alert.ID == id {
			return &alert, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", model.ErrAlertNotFound, id)
}

func (v alertsView) Resolve(_ context.Context, id model.AlertID) (*model.Alert, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.alerts {
		if v.alerts[i].ID != id {
			continue
		}

		changed := v.alerts[i].Resolve(v.Now())
		alert := v.alerts[i]

		return &alert, changed, nil
	}

	return nil, false, fmt.Errorf("%w: %s", model.ErrAlertNotFound, id)
}

func (v alertsView) ListForDevice(_ context.Context, deviceID model.DeviceID, resolved *bool, page model.Page) (model.PageResult[model.Alert], error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	return paginate(newestAlerts(v.alerts, func(alert model.Alert) bool {
		return alert.DeviceID == deviceID && (resolved == nil || alert.Resolved == *resolved)
	}), page), nil
}

func (v alertsView) ListUnresolved(_ context.Context, page model.Page) (model.PageResult[model.Alert], error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	return paginate(newestAlerts(v.alerts, func(alert model.Alert) bool {
		return !alert.Resolved
	}), page), nil
}

func newestLocations(samples []model.LocationSample, keep func(model.LocationSample) bool) []model.LocationSample {
	var matched []model.LocationSample
	for _, sample := range samples {
		if keep(sample) {
			matched = append(matched, sample)
		}
	}

	slices.SortFunc(matched, func(a, b model.LocationSample) int {
		return cmp.Or(b.Timestamp.Compare(a.Timestamp), cmp.Compare(b.ID, a.ID))
	})

	return matched
}

func newestAlerts(alerts []model.Alert, keep func(model.Alert) bool) []model.Alert {
	var matched []model.Alert
	for _, alert := range alerts {
		if keep(alert) {
			matched = append(matched, alert)
		}
	}

	slices.SortFunc(matched, func(a, b model.Alert) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})

	return matched
}

func paginate[T any](items []T, page model.Page) model.PageResult[T] {
	total := uint(len(items))
	start := min(page.Offset(), uint64(total))
	end := min(start+page.Limit(), uint64(total))

	return model.NewPageResult(slices.Clone(items[start:end]), page, total)
}
