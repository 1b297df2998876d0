package ports

import (
	"context"
	"time"

	"github.com/architeacher/gpstracker/internal/domain/model"
)

type (
	// DevicesRepository is the read-only view of the device registry.
	DevicesRepository interface {
		// Exists reports whether a device with the given ID is registered.
		Exists(ctx context.Context, id model.DeviceID) (bool, error)

		// GetByID returns model.ErrDeviceNotFound when the device is unknown.
		GetByID(ctx context.Context, id model.DeviceID) (*model.Device, error)
	}

	// LocationsRepository stores location samples. Samples are append-only.
	LocationsRepository interface {
		// Insert stores a sample through the write procedure and returns the
		// generated ID. A zero timestamp lets the store assign one.
		Insert(ctx context.Context, deviceID model.DeviceID, latitude, longitude float64, timestamp time.Time) (model.LocationID, error)

		// GetByID fetches a stored sample, used for read-after-write.
		GetByID(ctx context.Context, id model.LocationID) (*model.LocationSample, error)

		// LatestForDevice returns model.ErrLocationNotFound when the device has no samples.
		LatestForDevice(ctx context.Context, deviceID model.DeviceID) (*model.LocationSample, error)

		// ListForDevice returns a page of samples, newest first.
		ListForDevice(ctx context.Context, deviceID model.DeviceID, page model.Page) (model.PageResult[model.LocationSample], error)

		// ListForDeviceInRange returns a page of samples within the inclusive range, newest first.
		ListForDeviceInRange(ctx context.Context, deviceID model.DeviceID, timeRange model.TimeRange, page model.Page) (model.PageResult[model.LocationSample], error)
	}

	// EventsRepository stores device status events. Events are append-only.
	EventsRepository interface {
		Insert(ctx context.Context, deviceID model.DeviceID, eventType model.EventType, timestamp time.Time) (model.EventID, error)
		GetByID(ctx context.Context, id model.EventID) (*model.DeviceEvent, error)

		// ListRecent returns a page of events, newest first. An empty type matches all events.
		ListRecent(ctx context.Context, deviceID model.DeviceID, eventType model.EventType, page model.Page) (model.PageResult[model.DeviceEvent], error)
	}

	AlertsRepository interface {
		Insert(ctx context.Context, deviceID model.DeviceID, alertType model.AlertType, message string) (model.AlertID, error)

		// GetByID returns model.ErrAlertNotFound when the alert is unknown.
		GetByID(ctx context.Context, id model.AlertID) (*model.Alert, error)

		// Resolve flips an unresolved alert to resolved and reports whether this
		// call changed it. An already resolved alert is returned unchanged.
		Resolve(ctx context.Context, id model.AlertID) (*model.Alert, bool, error)

		// ListForDevice filters by resolved state when resolved is non-nil.
		ListForDevice(ctx context.Context, deviceID model.DeviceID, resolved *bool, page model.Page) (model.PageResult[model.Alert], error)

		// ListUnresolved returns unresolved alerts across all devices, newest first.
		ListUnresolved(ctx context.Context, page model.Page) (model.PageResult[model.Alert], error)
	}

	// DatabaseHealthChecker defines the interface for database health checks.
	DatabaseHealthChecker interface {
		// Ping checks if the database connection is alive.
		Ping(ctx context.Context) error
	}
)
