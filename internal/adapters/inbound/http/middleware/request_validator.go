package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/handlers/shared"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

type (
	RequestValidatorOptions struct {
		Options      openapi3filter.Options
		ErrorHandler func(w http.ResponseWriter, failure ValidationFailure)
	}

	// ValidationFailure describes why a request did not match the API document.
	ValidationFailure struct {
		StatusCode int
		Code       string
		Message    string
	}
)

// OapiRequestValidatorWithOptions rejects requests that do not match the
// embedded API document before they reach a handler.
func OapiRequestValidatorWithOptions(
	swagger *openapi3.T,
	options *RequestValidatorOptions,
) (func(http.Handler) http.Handler, error) {
	router, err := gorillamux.NewRouter(swagger)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAPI router: %w", err)
	}

	errorHandler := RequestValidationErrHandler
	if options != nil && options.ErrorHandler != nil {
		errorHandler = options.ErrorHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)

				return
			}

			if failure, ok := validateRequest(r, router, options); !ok {
				errorHandler(w, failure)

				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

func validateRequest(r *http.Request, router routers.Router, options *RequestValidatorOptions) (ValidationFailure, bool) {
	route, pathParams, err := router.FindRoute(r)
	if err != nil {
		if errors.Is(err, routers.ErrMethodNotAllowed) {
			return ValidationFailure{
				StatusCode: http.StatusMethodNotAllowed,
				Code:       "METHOD_NOT_ALLOWED",
				Message:    "method not allowed",
			}, false
		}

		return ValidationFailure{
			StatusCode: http.StatusNotFound,
			Code:       shared.CodeNotFound,
			Message:    "route not found",
		}, false
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: pathParams,
		Route:      route,
	}

	if options != nil {
		input.Options = &options.Options
	}

	err = openapi3filter.ValidateRequest(r.Context(), input)
	if err == nil {
		return ValidationFailure{}, true
	}

	var requestErr *openapi3filter.RequestError
	if !errors.As(err, &requestErr) {
		return ValidationFailure{
			StatusCode: http.StatusBadRequest,
			Code:       shared.CodeValidation,
			Message:    sanitizeErrorMessage(err.Error()),
		}, false
	}

	return ValidationFailure{
		StatusCode: http.StatusBadRequest,
		Code:       codeFor(requestErr),
		Message:    sanitizeErrorMessage(requestErr.Error()),
	}, false
}

func codeFor(requestErr *openapi3filter.RequestError) string {
	if requestErr.Parameter != nil {
		switch requestErr.Parameter.Name {
		case "deviceId":
			return shared.CodeInvalidDeviceID
		case "alertId":
			return shared.CodeInvalidAlertID
		}
	}

	var parseErr *openapi3filter.ParseError
	if requestErr.RequestBody != nil && errors.As(requestErr.Err, &parseErr) {
		return shared.CodeInvalidJSON
	}

	return shared.CodeValidation
}

func RequestValidationErrHandler(w http.ResponseWriter, failure ValidationFailure) {
	shared.WriteJSON(w, failure.StatusCode, shared.ErrorResponse{
		Code:      failure.Code,
		Message:   failure.Message,
		Timestamp: time.Now().UTC(),
	})
}

// sanitizeErrorMessage drops the request path prefix kin-openapi puts in front
// of its messages.
func sanitizeErrorMessage(message string) string {
	if idx := strings.Index(message, ": "); idx != -1 {
		return message[idx+2:]
	}

	return message
}
