package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/handlers/shared"
	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/throttled/throttled/v2"
)

const (
	RateLimitLimitHeader     = "RateLimit-Limit"
	RateLimitRemainingHeader = "RateLimit-Remaining"
	RateLimitResetHeader     = "RateLimit-Reset"

	CodeRateLimitExceeded      = "RATE_LIMIT_EXCEEDED"
	CodeRateLimiterUnavailable = "RATE_LIMITER_UNAVAILABLE"

	globalRateLimitKey = "global"
)

// ThrottledRateLimitingMiddleware applies a GCRA limit per client IP, or a
// single global limit when IP limiting is off.
func ThrottledRateLimitingMiddleware(
	cfg config.ThrottledRateLimiting,
	store throttled.GCRAStoreCtx,
	log logger.Logger,
) (func(http.Handler) http.Handler, error) {
	quota := throttled.RateQuota{
		MaxRate:  throttled.PerSec(int(cfg.RequestsPerSecond)),
		MaxBurst: int(cfg.BurstSize),
	}

	rateLimiter, err := throttled.NewGCRARateLimiterCtx(store, quota)
	if err != nil {
		return nil, fmt.Errorf("creating rate limiter: %w", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkipRateLimit(r.URL.Path, cfg.SkipPaths) {
				next.ServeHTTP(w, r)

				return
			}

			limited, result, err := rateLimiter.RateLimitCtx(r.Context(), rateLimitKey(r, cfg), 1)
			if err != nil {
				l := log.WithContext(r.Context())
				l.Warn().Err(err).Msg("rate limiter store error")

				if cfg.GracefulDegraded {
					next.ServeHTTP(w, r)

					return
				}

				shared.WriteJSON(w, http.StatusServiceUnavailable, shared.ErrorResponse{
					Code:      CodeRateLimiterUnavailable,
					Message:   "rate limiting service temporarily unavailable",
					Timestamp: time.Now().UTC(),
				})

				return
			}

			setRateLimitHeaders(w, result)

			if limited {
				w.Header().Set(shared.HeaderRetryAfter, strconv.Itoa(max(1, int(result.RetryAfter.Seconds()))))
				shared.WriteJSON(w, http.StatusTooManyRequests, shared.ErrorResponse{
					Code:      CodeRateLimitExceeded,
					Message:   "too many requests, please try again later",
					Timestamp: time.Now().UTC(),
				})

				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

func shouldSkipRateLimit(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
			return true
		}
	}

	return false
}

func rateLimitKey(r *http.Request, cfg config.ThrottledRateLimiting) string {
	if !cfg.EnableIPLimiting {
		return globalRateLimitKey
	}

	return "ip:" + extractIP(r.RemoteAddr)
}

func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}

	return host
}

func setRateLimitHeaders(w http.ResponseWriter, result throttled.RateLimitResult) {
	w.Header().Set(RateLimitLimitHeader, strconv.Itoa(result.Limit))
	w.Header().Set(RateLimitRemainingHeader, strconv.Itoa(result.Remaining))
	w.Header().Set(RateLimitResetHeader, strconv.FormatInt(time.Now().Add(result.ResetAfter).Unix(), 10))
}
