package model

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrDeviceNotFound     = errors.New("device not found")
	ErrAlertNotFound      = errors.New("alert not found")
	ErrLocationNotFound   = errors.New("no location recorded for device")
	ErrInvalidDeviceID    = errors.New("invalid device ID")
	ErrInvalidAlertID     = errors.New("invalid alert ID")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
	ErrInvalidEventType   = errors.New("invalid event type")
	ErrInvalidAlertType   = errors.New("invalid alert type")
	ErrInvalidTimeRange   = errors.New("start of range must not be after its end")
	ErrInvalidPagination  = errors.New("invalid pagination parameters")
	ErrInvalidMessage     = errors.New("invalid telemetry message")
	ErrQueueUnavailable   = errors.New("telemetry queue unavailable")
	ErrPublishTimeout     = errors.New("telemetry publish timed out")
	ErrDatabaseConnection = errors.New("database connection error")
	ErrDatabaseQuery      = errors.New("database query error")
	ErrCacheUnavailable   = errors.New("cache unavailable")
	ErrBroadcastFailed    = errors.New("live broadcast failed")
	ErrMessageRejected    = errors.New("telemetry message rejected")
)

type ValidationError struct {
	Field   string
	Message string
	Code    string
}

type ValidationErrors struct {
	Errors []ValidationError
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ErrValidation.Error()
	}

	messages := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		messages = append(messages, e.Message)
	}

	return strings.Join(messages, "; ")
}

func (v *ValidationErrors) Unwrap() error {
	return ErrValidation
}

func (v *ValidationErrors) Add(field, message, code string) {
	v.Errors = append(v.Errors, ValidationError{
		Field:   field,
		Message: message,
		Code:    code,
	})
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// ErrOrNil returns v as an error only when something was added.
func (v *ValidationErrors) ErrOrNil() error {
	if !v.HasErrors() {
		return nil
	}

	return v
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make([]ValidationError, 0),
	}
}

// IsValidation reports errors caused by malformed input. They are never retried.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidDeviceID) ||
		errors.Is(err, ErrInvalidAlertID) ||
		errors.Is(err, ErrInvalidCoordinates) ||
		errors.Is(err, ErrInvalidEventType) ||
		errors.Is(err, ErrInvalidAlertType) ||
		errors.Is(err, ErrInvalidTimeRange) ||
		errors.Is(err, ErrInvalidPagination) ||
		errors.Is(err, ErrInvalidMessage)
}

// IsNotFound reports references to entities that do not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDeviceNotFound) ||
		errors.Is(err, ErrAlertNotFound) ||
		errors.Is(err, ErrLocationNotFound)
}

// IsTransient reports infrastructure failures worth retrying.
func IsTransient(err error) bool {
	if err == nil || IsValidation(err) || IsNotFound(err) {
		return false
	}

	return errors.Is(err, ErrQueueUnavailable) ||
		errors.Is(err, ErrPublishTimeout) ||
		errors.Is(err, ErrDatabaseConnection) ||
		errors.Is(err, ErrDatabaseQuery) ||
		errors.Is(err, ErrCacheUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}
