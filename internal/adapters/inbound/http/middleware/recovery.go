package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/handlers/shared"
	"github.com/architeacher/gpstracker/pkg/logger"
)

// Recovery returns a middleware that recovers from panics.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}

				if rvr == http.ErrAbortHandler {
					// the client connection is already gone
					panic(rvr)
				}

				var errMsg string
				switch v := rvr.(type) {
				case string:
					errMsg = v
				case error:
					errMsg = v.Error()
				default:
					errMsg = fmt.Sprintf("%v", v)
				}

				l := log.WithContext(r.Context())
				l.Error().
					Str("error", errMsg).
					Str("stack", string(debug.Stack())).
					Str("path", r.URL.Path).
					Str("method", r.Method).
					Msg("panic recovered")

				if r.Header.Get("Connection") == "Upgrade" {
					return
				}

				shared.WriteJSON(w, http.StatusInternalServerError, shared.ErrorResponse{
					Code:      shared.CodeInternalError,
					Message:   "internal server error",
					Timestamp: time.Now().UTC(),
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
