package shared

const (
	HeaderContentType   = "Content-Type"
	HeaderRetryAfter    = "Retry-After"
	HeaderLocation      = "Location"
	HeaderTraceparent   = "traceparent"
	HeaderRequestID     = "Request-Id"
	HeaderCorrelationID = "Correlation-Id"

	ContentTypeJSON = "application/json"
)
