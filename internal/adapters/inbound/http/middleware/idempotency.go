package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/handlers/shared"
	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/idempotency"
	"github.com/architeacher/gpstracker/pkg/logger"
)

const (
	CodeInvalidIdempotencyKey = "INVALID_IDEMPOTENCY_KEY"
	CodeIdempotencyKeyReused  = "IDEMPOTENCY_KEY_REUSED"
	CodeRequestInProgress     = "REQUEST_IN_PROGRESS"
)

// IdempotencyMiddleware replays the stored response of a request retried
// with the same Idempotency-Key, so a retried submission is queued once.
func IdempotencyMiddleware(
	cache ports.IdempotencyCache,
	cfg config.Idempotency,
	log logger.Logger,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || !slices.Contains(cfg.RequiredMethods, r.Method) {
				next.ServeHTTP(w, r)

				return
			}

			idempotencyKey := r.Header.Get(cfg.HeaderName)
			if idempotencyKey == "" {
				next.ServeHTTP(w, r)

				return
			}

			if err := idempotency.Validate(idempotencyKey); err != nil {
				writeError(w, http.StatusBadRequest, CodeInvalidIdempotencyKey, err.Error())

				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, shared.CodeInvalidJSON, "failed to read request body")

				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r = r.WithContext(idempotency.WithKey(r.Context(), idempotencyKey))

			fingerprint := idempotency.Fingerprint(body)
			cacheKey := idempotency.BuildCacheKey(r.Method, r.URL.Path, idempotencyKey)
			ctx := r.Context()
			reqLog := log.WithContext(ctx)

			cached, err := cache.Get(ctx, cacheKey)
			if err != nil {
				reqLog.Warn().Err(err).Msg("idempotency cache get failed")
				degrade(w, r, next, cfg)

				return
			}

			if cached != nil {
				if err := idempotency.CheckFingerprint(cached.Fingerprint, fingerprint); errors.Is(err, idempotency.ErrKeyReused) {
					writeError(w, http.StatusUnprocessableEntity, CodeIdempotencyKeyReused, err.Error())

					return
				}

				writeCachedResponse(w, cfg, cached)

				return
			}

			acquired, err := cache.SetLock(ctx, cacheKey, cfg.LockTTL)
			if err != nil {
				reqLog.Warn().Err(err).Msg("idempotency cache lock failed")
				degrade(w, r, next, cfg)

				return
			}

			if !acquired {
				writeError(w, http.StatusConflict, CodeRequestInProgress,
					"a request with this idempotency key is already being processed")

				return
			}

			defer func() {
				if releaseErr := cache.ReleaseLock(ctx, cacheKey); releaseErr != nil {
					reqLog.Warn().Err(releaseErr).
						Str("idempotency_key", idempotencyKey).
						Msg("failed to release lock")
				}
			}()

			recorder := newResponseRecorder(w)
			next.ServeHTTP(recorder, r)

			if recorder.statusCode < http.StatusOK || recorder.statusCode >= http.StatusMultipleChoices {
				return
			}

			response := &ports.CachedResponse{
				StatusCode:  recorder.statusCode,
				Headers:     recorder.capturedHeaders(),
				Body:        recorder.body.Bytes(),
				Fingerprint: fingerprint,
				CreatedAt:   time.Now().UTC(),
			}

			if cacheErr := cache.Set(ctx, cacheKey, response, cfg.CacheTTL); cacheErr != nil {
				reqLog.Warn().Err(cacheErr).
					Str("idempotency_key", idempotencyKey).
					Msg("failed to cache response")
			}
		})
	}
}

func degrade(w http.ResponseWriter, r *http.Request, next http.Handler, cfg config.Idempotency) {
	if cfg.GracefulDegraded {
		next.ServeHTTP(w, r)

		return
	}

	writeError(w, http.StatusServiceUnavailable, shared.CodeCacheUnavailable,
		"idempotency service temporarily unavailable")
}

func writeCachedResponse(w http.ResponseWriter, cfg config.Idempotency, cached *ports.CachedResponse) {
	for key, value := range cached.Headers {
		w.Header().Set(key, value)
	}

	w.Header().Set(cfg.ReplayedHeader, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	shared.WriteJSON(w, status, shared.ErrorResponse{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// responseRecorder captures the response for caching.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
		body:           &bytes.Buffer{},
	}
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)

	return r.ResponseWriter.Write(b)
}

// capturedHeaders skips the per-request tracking headers; a replay carries
// the IDs of the retry, not of the original.
func (r *responseRecorder) capturedHeaders() map[string]string {
	headers := make(map[string]string)

	for key, values := range r.ResponseWriter.Header() {
		if len(values) == 0 || key == shared.HeaderRequestID || key == shared.HeaderCorrelationID {
			continue
		}

		headers[key] = values[0]
	}

	return headers
}
