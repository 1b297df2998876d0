package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/handlers/shared"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/internal/usecases"
	"github.com/architeacher/gpstracker/internal/usecases/commands"
	"github.com/architeacher/gpstracker/internal/usecases/queries"
)

const (
	statusHealthy     = "healthy"
	statusUnhealthy   = "unhealthy"
	statusUnavailable = "unavailable"

	defaultDeadLetterLimit = 100
	maxDeadLetterLimit     = 1000
)

var _ ServerInterface = (*AdminHandler)(nil)

// AdminHandler serves cache maintenance, dead-letter and health endpoints.
// It must only be exposed on the internal admin port.
type AdminHandler struct {
	cache ports.LocationCache
	app   *usecases.WebApplication
}

func NewAdminHandler(cache ports.LocationCache, app *usecases.WebApplication) *AdminHandler {
	return &AdminHandler{
		cache: cache,
		app:   app,
	}
}

func (h *AdminHandler) GetCacheHealth(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{
			"status": statusUnavailable,
			"error":  "cache not configured",
		})

		return
	}

	if !h.cache.IsHealthy(r.Context()) {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{
			"status": statusUnhealthy,
		})

		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": statusHealthy,
	})
}

func (h *AdminHandler) PurgeAllCaches(w http.ResponseWriter, r *http.Request) {
	if _, err := h.purge(r, commands.PurgeCacheCommand{Scope: commands.PurgeScopeAll}); err != nil {
		writePurgeError(w, err)

		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": "all location caches purged",
	})
}

func (h *AdminHandler) PurgeDeviceCache(w http.ResponseWriter, r *http.Request, deviceId int64) {
	cmd := commands.PurgeCacheCommand{Scope: commands.PurgeScopeDevice, DeviceID: model.DeviceID(deviceId)}

	if _, err := h.purge(r, cmd); err != nil {
		writePurgeError(w, err)

		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": "device cache purged",
		"id":     deviceId,
	})
}

func (h *AdminHandler) PurgeCacheByPattern(w http.ResponseWriter, r *http.Request, params PurgeCacheByPatternParams) {
	result, err := h.purge(r, commands.PurgeCacheCommand{Scope: commands.PurgeScopePattern, Pattern: params.Pattern})
	if err != nil {
		writePurgeError(w, err)

		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":  "cache purged by pattern",
		"pattern": params.Pattern,
		"deleted": result.Deleted,
	})
}

func (h *AdminHandler) ListDeadLetters(w http.ResponseWriter, r *http.Request, params DeadLettersParams) {
	limit, ok := deadLetterLimit(w, params)
	if !ok {
		return
	}

	letters, err := h.app.Queries.ListDeadLetters.Execute(r.Context(), queries.ListDeadLettersQuery{Limit: limit})
	if err != nil {
		writeDeadLetterError(w, err)

		return
	}

	if letters == nil {
		letters = []ports.DeadLetter{}
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"count":   len(letters),
		"letters": letters,
	})
}

func (h *AdminHandler) ReplayDeadLetters(w http.ResponseWriter, r *http.Request, params DeadLettersParams) {
	limit, ok := deadLetterLimit(w, params)
	if !ok {
		return
	}

	replayed, err := h.app.Commands.ReplayDeadLetters.Handle(r.Context(), commands.ReplayDeadLettersCommand{Limit: limit})
	if err != nil {
		writeDeadLetterError(w, err)

		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":   "dead letters replayed",
		"replayed": replayed,
	})
}

func (h *AdminHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.Queries.FetchLiveness.Execute(r.Context(), queries.FetchLivenessQuery{})
	if err != nil {
		writeDown(w)

		return
	}

	shared.WriteLiveness(w, report)
}

func (h *AdminHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.Queries.FetchReadiness.Execute(r.Context(), queries.FetchReadinessQuery{})
	if err != nil {
		writeDown(w)

		return
	}

	shared.WriteReadiness(w, report)
}

func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.Queries.FetchHealthReport.Execute(r.Context(), queries.FetchHealthReportQuery{})
	if err != nil {
		writeDown(w)

		return
	}

	shared.WriteHealth(w, report)
}

func (h *AdminHandler) purge(r *http.Request, cmd commands.PurgeCacheCommand) (commands.PurgeCacheResult, error) {
	return h.app.Commands.PurgeCache.Handle(r.Context(), cmd)
}

func deadLetterLimit(w http.ResponseWriter, params DeadLettersParams) (int, bool) {
	if params.Limit == nil {
		return defaultDeadLetterLimit, true
	}

	if *params.Limit < 1 || *params.Limit > maxDeadLetterLimit {
		writeJSONResponse(w, http.StatusBadRequest, map[string]string{
			"error": "limit must be between 1 and 1000",
		})

		return 0, false
	}

	return *params.Limit, true
}

func writePurgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrCacheUnavailable):
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{
			"error": "cache not available",
		})
	case model.IsValidation(err):
		writeJSONResponse(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	default:
		writeJSONResponse(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to purge cache: " + err.Error(),
		})
	}
}

func writeDeadLetterError(w http.ResponseWriter, err error) {
	if errors.Is(err, model.ErrQueueUnavailable) {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{
			"error": "dead-letter store not available",
		})

		return
	}

	writeJSONResponse(w, http.StatusInternalServerError, map[string]string{
		"error": "dead-letter operation failed: " + err.Error(),
	})
}

func writeDown(w http.ResponseWriter) {
	writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{
		"status": string(model.HealthStatusDown),
	})
}

func writeJSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set(shared.HeaderContentType, shared.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
