package middleware

import "net/http"

// SecurityHeaders marks every response as an uncacheable, unframeable API
// document and advertises the served API version.
func SecurityHeaders(apiVersion string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			// Positions change every few seconds; intermediaries must not serve stale ones.
			h.Set("Cache-Control", "no-store")

			if apiVersion != "" {
				h.Set("API-Version", apiVersion)
			}

			next.ServeHTTP(w, r)
		})
	}
}
