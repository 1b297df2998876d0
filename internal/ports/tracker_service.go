package ports

import (
	"context"
	"time"

	"github.com/architeacher/gpstracker/internal/domain/model"
)

type (
	// TelemetryGateway accepts telemetry onto the queue without waiting for persistence.
	TelemetryGateway interface {
		SubmitLocation(ctx context.Context, deviceID model.DeviceID, latitude, longitude float64, reportedAt *time.Time) (model.Receipt, error)
		SubmitEvent(ctx context.Context, deviceID model.DeviceID, eventType model.EventType, reportedAt *time.Time) (model.Receipt, error)
	}

	// TrackingQueries serves the read side. Device-scoped reads return
	// model.ErrDeviceNotFound for unknown devices.
	TrackingQueries interface {
		Device(ctx context.Context, deviceID model.DeviceID) (*model.Device, error)
		LastLocation(ctx context.Context, deviceID model.DeviceID) (*model.LocationSample, error)
		LocationHistory(ctx context.Context, deviceID model.DeviceID, page model.Page) (model.PageResult[model.LocationSample], error)
		LocationHistoryInRange(ctx context.Context, deviceID model.DeviceID, timeRange model.TimeRange, page model.Page) (model.PageResult[model.LocationSample], error)
		RecentEvents(ctx context.Context, deviceID model.DeviceID, eventType model.EventType, page model.Page) (model.PageResult[model.DeviceEvent], error)
		DeviceAlerts(ctx context.Context, deviceID model.DeviceID, resolved *bool, page model.Page) (model.PageResult[model.Alert], error)
		UnresolvedAlerts(ctx context.Context, page model.Page) (model.PageResult[model.Alert], error)
	}

	AlertManager interface {
		CreateAlert(ctx context.Context, deviceID model.DeviceID, alertType model.AlertType, message string) (*model.Alert, error)

		// ResolveAlert is idempotent: the first resolution wins.
		ResolveAlert(ctx context.Context, alertID model.AlertID) (*model.Alert, error)
	}

	TrackerService interface {
		TelemetryGateway
		TrackingQueries
		AlertManager
	}
)
