package public

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/handlers/shared"
	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/internal/usecases"
	"github.com/architeacher/gpstracker/internal/usecases/commands"
	"github.com/architeacher/gpstracker/internal/usecases/queries"
	"github.com/architeacher/gpstracker/pkg/logger"
)

const msgInvalidRequestBody = "invalid request body"

var _ ServerInterface = (*TrackerHandler)(nil)

type (
	submitLocationRequest struct {
		Latitude  *float64   `json:"latitude"`
		Longitude *float64   `json:"longitude"`
		Timestamp *time.Time `json:"timestamp,omitempty"`
	}

	submitEventRequest struct {
		Type      string     `json:"type"`
		Timestamp *time.Time `json:"timestamp,omitempty"`
	}

	createAlertRequest struct {
		DeviceID int64  `json:"deviceId"`
		Type     string `json:"type"`
		Message  string `json:"message"`
	}

	deviceData struct {
		ID         model.DeviceID `json:"id"`
		Identifier string         `json:"identifier"`
		Alias      string         `json:"alias,omitempty"`
		Active     bool           `json:"active"`
		CreatedAt  time.Time      `json:"createdAt"`
	}

	TrackerHandler struct {
		app         *usecases.WebApplication
		errors      shared.ErrorWriter
		log         logger.Logger
		broadcaster ports.Broadcaster
		live        config.Live
		shutdown    chan struct{}
		closeOnce   sync.Once
	}

	TrackerHandlerOption func(*TrackerHandler)
)

func NewTrackerHandler(app *usecases.WebApplication, log logger.Logger, opts ...TrackerHandlerOption) *TrackerHandler {
	h := &TrackerHandler{
		app:      app,
		errors:   shared.NewErrorWriter(log, time.Second),
		log:      log,
		shutdown: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// WithRetryAfter sets the Retry-After hint sent with 503 responses.
func WithRetryAfter(retryAfter time.Duration) TrackerHandlerOption {
	return func(h *TrackerHandler) {
		h.errors = shared.NewErrorWriter(h.log, retryAfter)
	}
}

// WithLiveUpdates enables the websocket endpoint.
func WithLiveUpdates(broadcaster ports.Broadcaster, cfg config.Live) TrackerHandlerOption {
	return func(h *TrackerHandler) {
		h.broadcaster = broadcaster
		h.live = withLiveDefaults(cfg)
	}
}

func (h *TrackerHandler) GetDevice(w http.ResponseWriter, r *http.Request, deviceId DeviceId) {
	device, err := h.app.Queries.GetDevice.Execute(r.Context(), queries.GetDeviceQuery{DeviceID: model.DeviceID(deviceId)})
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	shared.WriteData(w, r, http.StatusOK, deviceData{
		ID:         device.ID,
		Identifier: device.Identifier,
		Alias:      device.Alias,
		Active:     device.Active,
		CreatedAt:  device.CreatedAt,
	})
}

func (h *TrackerHandler) SubmitLocation(w http.ResponseWriter, r *http.Request, deviceId DeviceId) {
	var req submitLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, shared.CodeInvalidJSON, msgInvalidRequestBody)

		return
	}

	if req.Latitude == nil || req.Longitude == nil {
		shared.WriteError(w, http.StatusBadRequest, shared.CodeValidation, "latitude and longitude are required")

		return
	}

	receipt, err := h.app.Commands.SubmitLocation.Handle(r.Context(), commands.SubmitLocationCommand{
		DeviceID:   model.DeviceID(deviceId),
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		ReportedAt: req.Timestamp,
	})
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	shared.WriteData(w, r, http.StatusAccepted, receipt)
}

func (h *TrackerHandler) ListLocations(w http.ResponseWriter, r *http.Request, deviceId DeviceId, params PageParams) {
	page, err := toPage(params)
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	result, err := h.app.Queries.ListLocations.Execute(r.Context(), queries.ListLocationsQuery{
		DeviceID: model.DeviceID(deviceId),
		Page:     page,
	})
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	shared.WritePage(w, r, *result)
}

func (h *TrackerHandler) GetLastLocation(w http.ResponseWriter, r *http.Request, deviceId DeviceId) {
	sample, err := h.app.Queries.GetLastLocation.Execute(r.Context(), queries.GetLastLocationQuery{
		DeviceID: model.DeviceID(deviceId),
	})
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	shared.WriteData(w, r, http.StatusOK, sample)
}

func (h *TrackerHandler) ListLocationsInRange(
	w http.ResponseWriter,
	r *http.Request,
	deviceId DeviceId,
	params ListLocationsInRangeParams,
) {
	page, err := toPage(params.PageParams)
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	timeRange, err := model.NewTimeRange(params.From, params.To)
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	result, err := h.app.Queries.ListLocationsInRange.Execute(r.Context(), queries.ListLocationsInRangeQuery{
		DeviceID:  model.DeviceID(deviceId),
		TimeRange: timeRange,
		Page:      page,
	})
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	shared.WritePage(w, r, *result)
}

func (h *TrackerHandler) SubmitEvent(w http.ResponseWriter, r *http.Request, deviceId DeviceId) {
	var req submitEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, shared.CodeInvalidJSON, msgInvalidRequestBody)

		return
	}

	receipt, err := h.app.Commands.SubmitEvent.Handle(r.Context(), commands.SubmitEventCommand{
		DeviceID:   model.DeviceID(deviceId),
		Type:       model.EventType(req.Type),
		ReportedAt: req.Timestamp,
	})
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	shared.WriteData(w, r, http.StatusAccepted, receipt)
}

func (h *TrackerHandler) ListEvents(w http.ResponseWriter, r *http.Request, deviceId DeviceId, params ListEventsParams) {
	page, err := toPage(params.PageParams)
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	query := queries.ListEventsQuery{DeviceID: model.DeviceID(deviceId), Page: page}
	if params.Type != nil {
		query.Type = model.EventType(*params.Type)
	}

	result, err := h.app.Queries.ListEvents.Execute(r.Context(), query)
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	shared.WritePage(w, r, result)
}

func (h *TrackerHandler) ListDeviceAlerts(
	w http.ResponseWriter,
	r *http.Request,
	deviceId DeviceId,
	params ListDeviceAlertsParams,
) {
	page, err := toPage(params.PageParams)
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	result, err := h.app.Queries.ListDeviceAlerts.Execute(r.Context(), queries.ListDeviceAlertsQuery{
		DeviceID: model.DeviceID(deviceId),
		Resolved: params.Resolved,
		Page:     page,
	})
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	shared.WritePage(w, r, result)
}

func (h *TrackerHandler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, shared.CodeInvalidJSON, msgInvalidRequestBody)

		return
	}

	alert, err := h.app.Commands.CreateAlert.Handle(r.Context(), commands.CreateAlertCommand{
		DeviceID: model.DeviceID(req.DeviceID),
		Type:     model.AlertType(req.Type),
		Message:  req.Message,
	})
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	w.Header().Set(shared.HeaderLocation, fmt.Sprintf("/v1/devices/%s/alerts", alert.DeviceID))
	shared.WriteData(w, r, http.StatusCreated, alert)
}

func (h *TrackerHandler) ListUnresolvedAlerts(w http.ResponseWriter, r *http.Request, params PageParams) {
	page, err := toPage(params)
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	result, err := h.app.Queries.ListUnresolvedAlerts.Execute(r.Context(), queries.ListUnresolvedAlertsQuery{Page: page})
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	shared.WritePage(w, r, result)
}

func (h *TrackerHandler) ResolveAlert(w http.ResponseWriter, r *http.Request, alertId AlertId) {
	if alertId <= 0 {
		h.errors.Write(w, r, fmt.Errorf("%w: %d", model.ErrInvalidAlertID, alertId))

		return
	}

	alert, err := h.app.Commands.ResolveAlert.Handle(r.Context(), commands.ResolveAlertCommand{
		AlertID: model.AlertID(alertId),
	})
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	shared.WriteData(w, r, http.StatusOK, alert)
}

func (h *TrackerHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.Queries.FetchHealthReport.Execute(r.Context(), queries.FetchHealthReportQuery{})
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	shared.WriteHealth(w, report)
}

func (h *TrackerHandler) GetLiveness(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.Queries.FetchLiveness.Execute(r.Context(), queries.FetchLivenessQuery{})
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	shared.WriteLiveness(w, report)
}

func (h *TrackerHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.Queries.FetchReadiness.Execute(r.Context(), queries.FetchReadinessQuery{})
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	shared.WriteReadiness(w, report)
}

// ParamErrorHandler reports parameters that failed to bind.
func ParamErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	var paramErr *ParamError
	if errors.As(err, &paramErr) && paramErr.ParamName == "deviceId" {
		shared.WriteError(w, http.StatusBadRequest, shared.CodeInvalidDeviceID, err.Error())

		return
	}

	shared.WriteError(w, http.StatusBadRequest, shared.CodeValidation, err.Error())
}

func toPage(params PageParams) (model.Page, error) {
	var number, size int

	if params.Page != nil {
		number = *params.Page
	}

	if params.Size != nil {
		size = *params.Size
	}

	if number < 0 || size < 0 {
		return model.Page{}, fmt.Errorf("%w: page and size must not be negative", model.ErrInvalidPagination)
	}

	return model.NewPage(uint(number), uint(size))
}

func withLiveDefaults(cfg config.Live) config.Live {
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}

	if cfg.PongWait <= 0 {
		cfg.PongWait = time.Minute
	}

	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}

	return cfg
}
