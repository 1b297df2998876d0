package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/pipeline"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/circuitbreaker"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/architeacher/gpstracker/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
)

var _ ports.TrackerService = (*TrackerService)(nil)

type (
	Repositories struct {
		Devices   ports.DevicesRepository
		Locations ports.LocationsRepository
		Events    ports.EventsRepository
		Alerts    ports.AlertsRepository
	}

	// TrackerService accepts telemetry onto the queue, answers read queries
	// and manages the alert lifecycle.
	TrackerService struct {
		repos       Repositories
		publisher   ports.TelemetryPublisher
		breaker     *circuitbreaker.CircuitBreaker[int]
		broadcaster ports.Broadcaster
		metrics     metrics.Client
		logger      logger.Logger

		// alerts stores requested alerts through the same steps the
		// consumers apply to queued ones.
		alerts *pipeline.Pipeline
	}
)

// NewTrackerService wires the service. breaker may be nil to publish without one.
func NewTrackerService(
	repos Repositories,
	publisher ports.TelemetryPublisher,
	breaker *circuitbreaker.CircuitBreaker[int],
	broadcaster ports.Broadcaster,
	metricsClient metrics.Client,
	log logger.Logger,
) *TrackerService {
	return &TrackerService{
		repos:       repos,
		publisher:   publisher,
		breaker:     breaker,
		broadcaster: broadcaster,
		metrics:     metricsClient,
		logger:      log.Component("tracker-service"),
		alerts: pipeline.New(
			nil,
			broadcaster,
			metricsClient,
			log,
			pipeline.NewAlertStage(repos.Devices, repos.Alerts),
		),
	}
}

// SubmitLocation queues a sample. Coordinates and device existence are
// checked by the consumer, not here.
func (s *TrackerService) SubmitLocation(
	ctx context.Context,
	deviceID model.DeviceID,
	latitude, longitude float64,
	reportedAt *time.Time,
) (model.Receipt, error) {
	return s.submit(ctx, model.NewLocationMessage(deviceID, latitude, longitude, reportedAt))
}

func (s *TrackerService) SubmitEvent(
	ctx context.Context,
	deviceID model.DeviceID,
	eventType model.EventType,
	reportedAt *time.Time,
) (model.Receipt, error) {
	return s.submit(ctx, model.NewEventMessage(deviceID, eventType, reportedAt))
}

func (s *TrackerService) submit(ctx context.Context, msg model.TelemetryMessage) (model.Receipt, error) {
	if msg.DeviceID <= 0 {
		return model.Receipt{}, fmt.Errorf("%w: %d", model.ErrInvalidDeviceID, msg.DeviceID)
	}

	msg.CorrelationID = logger.CorrelationIDFromContext(ctx)
	if msg.CorrelationID == "" {
		msg.CorrelationID = msg.ID
	}

	partition, err := circuitbreaker.ExecuteContext(ctx, s.breaker, func(ctx context.Context) (int, error) {
		return s.publisher.Publish(ctx, msg)
	})
	if err != nil {
		l := s.logger.WithContext(ctx)
		l.Warn().Err(err).
			Str("kind", msg.Kind.String()).
			Int64("device_id", msg.DeviceID.Int64()).
			Msg("failed to queue telemetry")

		return model.Receipt{}, queueError(err)
	}

	s.metrics.Inc(ctx, metrics.TelemetrySubmittedTotal, int64(1), attribute.String("kind", msg.Kind.String()))

	return model.Receipt{
		MessageID:     msg.ID,
		CorrelationID: msg.CorrelationID,
		Kind:          msg.Kind,
		DeviceID:      msg.DeviceID,
		Partition:     partition,
		AcceptedAt:    time.Now().UTC(),
	}, nil
}

// queueError folds every publish failure the caller can retry into ErrQueueUnavailable.
func queueError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, model.ErrQueueUnavailable) {
		return err
	}

	return fmt.Errorf("%w: %w", model.ErrQueueUnavailable, err)
}

func (s *TrackerService) Device(ctx context.Context, deviceID model.DeviceID) (*model.Device, error) {
	if deviceID <= 0 {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidDeviceID, deviceID)
	}

	return s.repos.Devices.GetByID(ctx, deviceID)
}

func (s *TrackerService) LastLocation(ctx context.Context, deviceID model.DeviceID) (*model.LocationSample, error) {
	if err := s.requireDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	return s.repos.Locations.LatestForDevice(ctx, deviceID)
}

func (s *TrackerService) LocationHistory(
	ctx context.Context,
	deviceID model.DeviceID,
	page model.Page,
) (model.PageResult[model.LocationSample], error) {
	if err := s.requireDevice(ctx, deviceID); err != nil {
		return model.PageResult[model.LocationSample]{}, err
	}

	return s.repos.Locations.ListForDevice(ctx, deviceID, page)
}

func (s *TrackerService) LocationHistoryInRange(
	ctx context.Context,
	deviceID model.DeviceID,
	timeRange model.TimeRange,
	page model.Page,
) (model.PageResult[model.LocationSample], error) {
	if err := s.requireDevice(ctx, deviceID); err != nil {
		return model.PageResult[model.LocationSample]{}, err
	}

	return s.repos.Locations.ListForDeviceInRange(ctx, deviceID, timeRange, page)
}

func (s *TrackerService) RecentEvents(
	ctx context.Context,
	deviceID model.DeviceID,
	eventType model.EventType,
	page model.Page,
) (model.PageResult[model.DeviceEvent], error) {
	if eventType != "" && !eventType.IsValid() {
		return model.PageResult[model.DeviceEvent]{}, fmt.Errorf("%w: %q", model.ErrInvalidEventType, eventType)
	}

	if err := s.requireDevice(ctx, deviceID); err != nil {
		return model.PageResult[model.DeviceEvent]{}, err
	}

	return s.repos.Events.ListRecent(ctx, deviceID, eventType, page)
}

func (s *TrackerService) DeviceAlerts(
	ctx context.Context,
	deviceID model.DeviceID,
	resolved *bool,
	page model.Page,
) (model.PageResult[model.Alert], error) {
	if err := s.requireDevice(ctx, deviceID); err != nil {
		return model.PageResult[model.Alert]{}, err
	}

	return s.repos.Alerts.ListForDevice(ctx, deviceID, resolved, page)
}

func (s *TrackerService) UnresolvedAlerts(ctx context.Context, page model.Page) (model.PageResult[model.Alert], error) {
	return s.repos.Alerts.ListUnresolved(ctx, page)
}

// CreateAlert stores the alert synchronously and then announces it.
func (s *TrackerService) CreateAlert(
	ctx context.Context,
	deviceID model.DeviceID,
	alertType model.AlertType,
	message string,
) (*model.Alert, error) {
	msg := model.NewAlertMessage(deviceID, alertType, message)
	msg.CorrelationID = logger.CorrelationIDFromContext(ctx)

	record, err := s.alerts.Ingest(ctx, msg)
	if err != nil {
		return nil, err
	}

	alert, ok := record.Data.(model.Alert)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected alert record %T", model.ErrDatabaseQuery, record.Data)
	}

	return &alert, nil
}

// ResolveAlert resolves an alert once. Resolving it again returns the stored
// alert unchanged and announces nothing.
func (s *TrackerService) ResolveAlert(ctx context.Context, alertID model.AlertID) (*model.Alert, error) {
	alert, changed, err := s.repos.Alerts.Resolve(ctx, alertID)
	if err != nil {
		return nil, err
	}

	if changed {
		s.announce(ctx, alert)
	}

	return alert, nil
}

func (s *TrackerService) announce(ctx context.Context, alert *model.Alert) {
	if s.broadcaster == nil {
		return
	}

	l := s.logger.WithContext(ctx)

	payload, err := model.EncodeLiveUpdate(model.TelemetryKindAlert, alert.DeviceID, alert)
	if err != nil {
		l.Error().Err(err).Int64("alert_id", alert.ID.Int64()).Msg("failed to encode alert update")

		return
	}

	if err := s.broadcaster.Publish(ctx, model.AlertTopic(alert.DeviceID), payload); err != nil {
		l.Warn().Err(err).Int64("alert_id", alert.ID.Int64()).Msg("failed to broadcast alert update")

		return
	}

	s.metrics.Inc(ctx, metrics.BroadcastPublishedTotal, int64(1), attribute.String("kind", model.TelemetryKindAlert.String()))
}

func (s *TrackerService) requireDevice(ctx context.Context, deviceID model.DeviceID) error {
	if deviceID <= 0 {
		return fmt.Errorf("%w: %d", model.ErrInvalidDeviceID, deviceID)
	}

	exists, err := s.repos.Devices.Exists(ctx, deviceID)
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("%w: %s", model.ErrDeviceNotFound, deviceID)
	}

	return nil
}
