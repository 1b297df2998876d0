package shared

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/pkg/logger"
)

const (
	apiVersion = "v1"

	// W3C Trace Context: {version}-{trace-id}-{parent-id}-{trace-flags}.
	traceparentTraceIDStart = 3
	traceparentTraceIDEnd   = traceparentTraceIDStart + 32
	traceparentMinLength    = 55
)

type (
	PaginationData struct {
		Page        uint `json:"page"`
		Size        uint `json:"size"`
		TotalItems  uint `json:"totalItems"`
		TotalPages  uint `json:"totalPages"`
		HasNext     bool `json:"hasNext"`
		HasPrevious bool `json:"hasPrevious"`
	}

	ResponseMeta struct {
		RequestID     string `json:"requestId"`
		CorrelationID string `json:"correlationId,omitempty"`
		TraceID       string `json:"traceId,omitempty"`
		APIVersion    string `json:"apiVersion"`
	}

	// EnvelopedResponse wraps response data with metadata and optional pagination.
	EnvelopedResponse struct {
		Data       any             `json:"data"`
		Meta       ResponseMeta    `json:"meta"`
		Pagination *PaginationData `json:"pagination,omitempty"`
	}

	ErrorDetail struct {
		Field   string `json:"field"`
		Message string `json:"message"`
		Code    string `json:"code"`
	}

	ErrorResponse struct {
		Code      string        `json:"code"`
		Message   string        `json:"message"`
		Details   []ErrorDetail `json:"details,omitempty"`
		Timestamp time.Time     `json:"timestamp"`
	}
)

func NewMeta(r *http.Request) ResponseMeta {
	return ResponseMeta{
		RequestID:     logger.RequestIDFromContext(r.Context()),
		CorrelationID: logger.CorrelationIDFromContext(r.Context()),
		TraceID:       ExtractTraceID(r),
		APIVersion:    apiVersion,
	}
}

// ExtractTraceID reads the trace id out of the traceparent header.
func ExtractTraceID(r *http.Request) string {
	traceparent := r.Header.Get(HeaderTraceparent)
	if len(traceparent) < traceparentMinLength {
		return ""
	}

	return traceparent[traceparentTraceIDStart:traceparentTraceIDEnd]
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set(HeaderContentType, ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteData(w http.ResponseWriter, r *http.Request, status int, data any) {
	WriteJSON(w, status, EnvelopedResponse{
		Data: data,
		Meta: NewMeta(r),
	})
}

func WritePage[T any](w http.ResponseWriter, r *http.Request, page model.PageResult[T]) {
	WriteJSON(w, http.StatusOK, EnvelopedResponse{
		Data: page.Items,
		Meta: NewMeta(r),
		Pagination: &PaginationData{
			Page:        page.Page,
			Size:        page.Size,
			TotalItems:  page.TotalItems,
			TotalPages:  page.TotalPages,
			HasNext:     page.HasNext,
			HasPrevious: page.HasPrevious,
		},
	})
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}
