package middleware

import (
	"net/http"

	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/handlers/shared"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/google/uuid"
)

// RequestTracking assigns request and correlation IDs, honoring the ones a
// client sent, and echoes them back as response headers.
func RequestTracking() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := r.Header.Get(shared.HeaderCorrelationID)
			if correlationID == "" {
				correlationID = uuid.New().String()
			}

			requestID := r.Header.Get(shared.HeaderRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			ctx := logger.ContextWithCorrelationID(r.Context(), correlationID)
			ctx = logger.ContextWithRequestID(ctx, requestID)

			w.Header().Set(shared.HeaderCorrelationID, correlationID)
			w.Header().Set(shared.HeaderRequestID, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
