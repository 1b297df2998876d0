package public

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

type (
	DeviceId = int64
	AlertId  = int64

	PageParams struct {
		Page *int `form:"page,omitempty" json:"page,omitempty"`
		Size *int `form:"size,omitempty" json:"size,omitempty"`
	}

	ListLocationsInRangeParams struct {
		From time.Time `form:"from" json:"from"`
		To   time.Time `form:"to" json:"to"`
		PageParams
	}

	ListEventsParams struct {
		Type *string `form:"type,omitempty" json:"type,omitempty"`
		PageParams
	}

	ListDeviceAlertsParams struct {
		Resolved *bool `form:"resolved,omitempty" json:"resolved,omitempty"`
		PageParams
	}

	StreamLiveParams struct {
		Kinds *[]string `form:"kinds,omitempty" json:"kinds,omitempty"`
	}

	// ServerInterface lists every public operation of the API document.
	ServerInterface interface {
		GetDevice(w http.ResponseWriter, r *http.Request, deviceId DeviceId)
		SubmitLocation(w http.ResponseWriter, r *http.Request, deviceId DeviceId)
		ListLocations(w http.ResponseWriter, r *http.Request, deviceId DeviceId, params PageParams)
		GetLastLocation(w http.ResponseWriter, r *http.Request, deviceId DeviceId)
		ListLocationsInRange(w http.ResponseWriter, r *http.Request, deviceId DeviceId, params ListLocationsInRangeParams)
		SubmitEvent(w http.ResponseWriter, r *http.Request, deviceId DeviceId)
		ListEvents(w http.ResponseWriter, r *http.Request, deviceId DeviceId, params ListEventsParams)
		ListDeviceAlerts(w http.ResponseWriter, r *http.Request, deviceId DeviceId, params ListDeviceAlertsParams)
		StreamLive(w http.ResponseWriter, r *http.Request, deviceId DeviceId, params StreamLiveParams)
		CreateAlert(w http.ResponseWriter, r *http.Request)
		ListUnresolvedAlerts(w http.ResponseWriter, r *http.Request, params PageParams)
		ResolveAlert(w http.ResponseWriter, r *http.Request, alertId AlertId)
		GetHealth(w http.ResponseWriter, r *http.Request)
		GetLiveness(w http.ResponseWriter, r *http.Request)
		GetReadiness(w http.ResponseWriter, r *http.Request)
	}

	// ParamError reports a path or query parameter that could not be bound.
	ParamError struct {
		ParamName string
		Err       error
	}

	ChiServerOptions struct {
		BaseURL          string
		BaseRouter       chi.Router
		ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	}

	serverInterfaceWrapper struct {
		handler          ServerInterface
		errorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	}
)

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %v", e.ParamName, e.Err)
}

func (e *ParamError) Unwrap() error {
	return e.Err
}

// HandlerWithOptions mounts every operation of si on the base router.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}

	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}

	wrapper := serverInterfaceWrapper{
		handler:          si,
		errorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Route(options.BaseURL, func(r chi.Router) {
		r.Get("/devices/{deviceId}", wrapper.GetDevice)
		r.Post("/devices/{deviceId}/locations", wrapper.SubmitLocation)
		r.Get("/devices/{deviceId}/locations", wrapper.ListLocations)
		r.Get("/devices/{deviceId}/locations/last", wrapper.GetLastLocation)
		r.Get("/devices/{deviceId}/locations/range", wrapper.ListLocationsInRange)
		r.Post("/devices/{deviceId}/events", wrapper.SubmitEvent)
		r.Get("/devices/{deviceId}/events", wrapper.ListEvents)
		r.Get("/devices/{deviceId}/alerts", wrapper.ListDeviceAlerts)
		r.Get("/devices/{deviceId}/live", wrapper.StreamLive)
		r.Post("/alerts", wrapper.CreateAlert)
		r.Get("/alerts/unresolved", wrapper.ListUnresolvedAlerts)
		r.Post("/alerts/{alertId}/resolve", wrapper.ResolveAlert)
		r.Get("/health", wrapper.GetHealth)
		r.Get("/liveness", wrapper.GetLiveness)
		r.Get("/readiness", wrapper.GetReadiness)
	})

	return r
}

func (siw serverInterfaceWrapper) GetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := siw.deviceID(w, r)
	if !ok {
		return
	}

	siw.handler.GetDevice(w, r, deviceID)
}

func (siw serverInterfaceWrapper) SubmitLocation(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := siw.deviceID(w, r)
	if !ok {
		return
	}

	siw.handler.SubmitLocation(w, r, deviceID)
}

func (siw serverInterfaceWrapper) ListLocations(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := siw.deviceID(w, r)
	if !ok {
		return
	}

	var params PageParams
	if !siw.bindPage(w, r, &params) {
		return
	}

	siw.handler.ListLocations(w, r, deviceID, params)
}

func (siw serverInterfaceWrapper) GetLastLocation(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := siw.deviceID(w, r)
	if !ok {
		return
	}

	siw.handler.GetLastLocation(w, r, deviceID)
}

func (siw serverInterfaceWrapper) ListLocationsInRange(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := siw.deviceID(w, r)
	if !ok {
		return
	}

	var params ListLocationsInRangeParams

	if !siw.bindQuery(w, r, true, "from", &params.From) ||
		!siw.bindQuery(w, r, true, "to", &params.To) ||
		!siw.bindPage(w, r, &params.PageParams) {
		return
	}

	siw.handler.ListLocationsInRange(w, r, deviceID, params)
}

func (siw serverInterfaceWrapper) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := siw.deviceID(w, r)
	if !ok {
		return
	}

	siw.handler.SubmitEvent(w, r, deviceID)
}

func (siw serverInterfaceWrapper) ListEvents(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := siw.deviceID(w, r)
	if !ok {
		return
	}

	var params ListEventsParams

	if !siw.bindQuery(w, r, false, "type", &params.Type) || !siw.bindPage(w, r, &params.PageParams) {
		return
	}

	siw.handler.ListEvents(w, r, deviceID, params)
}

func (siw serverInterfaceWrapper) ListDeviceAlerts(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := siw.deviceID(w, r)
	if !ok {
		return
	}

	var params ListDeviceAlertsParams

	if !siw.bindQuery(w, r, false, "resolved", &params.Resolved) || !siw.bindPage(w, r, &params.PageParams) {
		return
	}

	siw.handler.ListDeviceAlerts(w, r, deviceID, params)
}

func (siw serverInterfaceWrapper) StreamLive(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := siw.deviceID(w, r)
	if !ok {
		return
	}

	var params StreamLiveParams

	if err := runtime.BindQueryParameter("form", false, false, "kinds", r.URL.Query(), &params.Kinds); err != nil {
		siw.errorHandlerFunc(w, r, &ParamError{ParamName: "kinds", Err: err})

		return
	}

	siw.handler.StreamLive(w, r, deviceID, params)
}

func (siw serverInterfaceWrapper) CreateAlert(w http.ResponseWriter, r *http.Request) {
	siw.handler.CreateAlert(w, r)
}

func (siw serverInterfaceWrapper) ListUnresolvedAlerts(w http.ResponseWriter, r *http.Request) {
	var params PageParams
	if !siw.bindPage(w, r, &params) {
		return
	}

	siw.handler.ListUnresolvedAlerts(w, r, params)
}

func (siw serverInterfaceWrapper) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	var alertID AlertId

	if !siw.bindPath(w, r, "alertId", &alertID) {
		return
	}

	siw.handler.ResolveAlert(w, r, alertID)
}

func (siw serverInterfaceWrapper) GetHealth(w http.ResponseWriter, r *http.Request) {
	siw.handler.GetHealth(w, r)
}

func (siw serverInterfaceWrapper) GetLiveness(w http.ResponseWriter, r *http.Request) {
	siw.handler.GetLiveness(w, r)
}

func (siw serverInterfaceWrapper) GetReadiness(w http.ResponseWriter, r *http.Request) {
	siw.handler.GetReadiness(w, r)
}

func (siw serverInterfaceWrapper) deviceID(w http.ResponseWriter, r *http.Request) (DeviceId, bool) {
	var deviceID DeviceId

	return deviceID, siw.bindPath(w, r, "deviceId", &deviceID)
}

func (siw serverInterfaceWrapper) bindPath(w http.ResponseWriter, r *http.Request, name string, dest any) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		siw.errorHandlerFunc(w, r, &ParamError{ParamName: name, Err: err})

		return false
	}

	return true
}

func (siw serverInterfaceWrapper) bindQuery(w http.ResponseWriter, r *http.Request, required bool, name string, dest any) bool {
	if err := runtime.BindQueryParameter("form", true, required, name, r.URL.Query(), dest); err != nil {
		siw.errorHandlerFunc(w, r, &ParamError{ParamName: name, Err: err})

		return false
	}

	return true
}

func (siw serverInterfaceWrapper) bindPage(w http.ResponseWriter, r *http.Request, params *PageParams) bool {
	return siw.bindQuery(w, r, false, "page", &params.Page) && siw.bindQuery(w, r, false, "size", &params.Size)
}
