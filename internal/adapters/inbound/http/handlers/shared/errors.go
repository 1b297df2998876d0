package shared

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/pkg/circuitbreaker"
	"github.com/architeacher/gpstracker/pkg/logger"
)

const (
	CodeInvalidDeviceID    = "INVALID_DEVICE_ID"
	CodeInvalidAlertID     = "INVALID_ALERT_ID"
	CodeInvalidJSON        = "INVALID_JSON"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeQueueUnavailable   = "QUEUE_UNAVAILABLE"
	CodeCacheUnavailable   = "CACHE_UNAVAILABLE"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"

	msgInternalError = "internal server error"
)

// ErrorWriter maps domain errors onto HTTP error documents.
type ErrorWriter struct {
	log        logger.Logger
	retryAfter time.Duration
}

func NewErrorWriter(log logger.Logger, retryAfter time.Duration) ErrorWriter {
	if retryAfter <= 0 {
		retryAfter = time.Second
	}

	return ErrorWriter{log: log, retryAfter: retryAfter}
}

func (e ErrorWriter) Write(w http.ResponseWriter, r *http.Request, err error) {
	status, body := e.Describe(err)

	if status == http.StatusServiceUnavailable {
		w.Header().Set(HeaderRetryAfter, strconv.Itoa(max(1, int(e.retryAfter.Seconds()))))
	}

	if status >= http.StatusInternalServerError {
		l := e.log.WithContext(r.Context())
		l.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	WriteJSON(w, status, body)
}

// Describe returns the status and body an error is reported with.
func (e ErrorWriter) Describe(err error) (int, ErrorResponse) {
	now := time.Now().UTC()

	var verrs *model.ValidationErrors

	switch {
	case errors.As(err, &verrs):
		details := make([]ErrorDetail, 0, len(verrs.Errors))
		for _, v := range verrs.Errors {
			details = append(details, ErrorDetail{Field: v.Field, Message: v.Message, Code: v.Code})
		}

		return http.StatusBadRequest, ErrorResponse{Code: CodeValidation, Message: verrs.Error(), Details: details, Timestamp: now}
	case errors.Is(err, model.ErrInvalidDeviceID):
		return http.StatusBadRequest, ErrorResponse{Code: CodeInvalidDeviceID, Message: err.Error(), Timestamp: now}
	case errors.Is(err, model.ErrInvalidAlertID):
		return http.StatusBadRequest, ErrorResponse{Code: CodeInvalidAlertID, Message: err.Error(), Timestamp: now}
	case model.IsValidation(err):
		return http.StatusBadRequest, ErrorResponse{Code: CodeValidation, Message: err.Error(), Timestamp: now}
	case model.IsNotFound(err):
		return http.StatusNotFound, ErrorResponse{Code: CodeNotFound, Message: err.Error(), Timestamp: now}
	case errors.Is(err, model.ErrQueueUnavailable),
		errors.Is(err, model.ErrPublishTimeout),
		circuitbreaker.IsRejection(err):
		return http.StatusServiceUnavailable, ErrorResponse{
			Code:      CodeQueueUnavailable,
			Message:   "telemetry queue is temporarily unavailable, retry later",
			Timestamp: now,
		}
	case errors.Is(err, model.ErrCacheUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{Code: CodeCacheUnavailable, Message: "cache is not available", Timestamp: now}
	case model.IsTransient(err), errors.Is(err, model.ErrBroadcastFailed), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ErrorResponse{
			Code:      CodeServiceUnavailable,
			Message:   "service is temporarily unavailable, retry later",
			Timestamp: now,
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{Code: CodeInternalError, Message: msgInternalError, Timestamp: now}
	}
}
