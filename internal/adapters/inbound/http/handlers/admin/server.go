package admin

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

type (
	PurgeCacheByPatternParams struct {
		Pattern string `form:"pattern" json:"pattern"`
	}

	DeadLettersParams struct {
		Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
	}

	// ServerInterface lists the internal operations served on the admin port.
	ServerInterface interface {
		GetCacheHealth(w http.ResponseWriter, r *http.Request)
		PurgeAllCaches(w http.ResponseWriter, r *http.Request)
		PurgeDeviceCache(w http.ResponseWriter, r *http.Request, deviceId int64)
		PurgeCacheByPattern(w http.ResponseWriter, r *http.Request, params PurgeCacheByPatternParams)
		ListDeadLetters(w http.ResponseWriter, r *http.Request, params DeadLettersParams)
		ReplayDeadLetters(w http.ResponseWriter, r *http.Request, params DeadLettersParams)
		LivenessCheck(w http.ResponseWriter, r *http.Request)
		ReadinessCheck(w http.ResponseWriter, r *http.Request)
		HealthCheck(w http.ResponseWriter, r *http.Request)
	}

	ChiServerOptions struct {
		BaseURL    string
		BaseRouter chi.Router
	}

	serverInterfaceWrapper struct {
		handler ServerInterface
	}
)

func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}

	wrapper := serverInterfaceWrapper{handler: si}

	r.Route(options.BaseURL+"/admin", func(r chi.Router) {
		r.Get("/cache/health", si.GetCacheHealth)
		r.Delete("/cache", si.PurgeAllCaches)
		r.Delete("/cache/devices/{deviceId}", wrapper.PurgeDeviceCache)
		r.Delete("/cache/pattern", wrapper.PurgeCacheByPattern)
		r.Get("/dead-letters", wrapper.ListDeadLetters)
		r.Post("/dead-letters/replay", wrapper.ReplayDeadLetters)
		r.Get("/liveness", si.LivenessCheck)
		r.Get("/readiness", si.ReadinessCheck)
		r.Get("/health", si.HealthCheck)
	})

	return r
}

func (siw serverInterfaceWrapper) PurgeDeviceCache(w http.ResponseWriter, r *http.Request) {
	var deviceID int64

	err := runtime.BindStyledParameterWithOptions("simple", "deviceId", chi.URLParam(r, "deviceId"), &deviceID, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Required:      true,
	})
	if err != nil {
		writeParamError(w, "deviceId", err)

		return
	}

	siw.handler.PurgeDeviceCache(w, r, deviceID)
}

func (siw serverInterfaceWrapper) PurgeCacheByPattern(w http.ResponseWriter, r *http.Request) {
	var params PurgeCacheByPatternParams

	if err := runtime.BindQueryParameter("form", true, true, "pattern", r.URL.Query(), &params.Pattern); err != nil {
		writeParamError(w, "pattern", err)

		return
	}

	siw.handler.PurgeCacheByPattern(w, r, params)
}

func (siw serverInterfaceWrapper) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	params, ok := bindDeadLetters(w, r)
	if !ok {
		return
	}

	siw.handler.ListDeadLetters(w, r, params)
}

func (siw serverInterfaceWrapper) ReplayDeadLetters(w http.ResponseWriter, r *http.Request) {
	params, ok := bindDeadLetters(w, r)
	if !ok {
		return
	}

	siw.handler.ReplayDeadLetters(w, r, params)
}

func bindDeadLetters(w http.ResponseWriter, r *http.Request) (DeadLettersParams, bool) {
	var params DeadLettersParams

	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		writeParamError(w, "limit", err)

		return params, false
	}

	return params, true
}

func writeParamError(w http.ResponseWriter, name string, err error) {
	writeJSONResponse(w, http.StatusBadRequest, map[string]string{
		"error": fmt.Sprintf("invalid format for parameter %s: %v", name, err),
	})
}
