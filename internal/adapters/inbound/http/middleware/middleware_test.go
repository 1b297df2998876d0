package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/handlers/shared"
	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/gpstracker/internal/testutil"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func TestRequestTracking(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		requestID     string
		correlationID string
	}{
		{name: "generates missing IDs"},
		{name: "keeps client IDs", requestID: "req-1", correlationID: "corr-1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var seenRequestID, seenCorrelationID string

			handler := middleware.RequestTracking()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenRequestID = logger.RequestIDFromContext(r.Context())
				seenCorrelationID = logger.CorrelationIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
			if tc.requestID != "" {
				req.Header.Set(shared.HeaderRequestID, tc.requestID)
				req.Header.Set(shared.HeaderCorrelationID, tc.correlationID)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.NotEmpty(t, seenRequestID)
			require.NotEmpty(t, seenCorrelationID)
			require.Equal(t, seenRequestID, rec.Header().Get(shared.HeaderRequestID))
			require.Equal(t, seenCorrelationID, rec.Header().Get(shared.HeaderCorrelationID))

			if tc.requestID != "" {
				require.Equal(t, tc.requestID, seenRequestID)
				require.Equal(t, tc.correlationID, seenCorrelationID)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	handler := middleware.Recovery(logger.NewBufferedTestLogger(&buf))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/devices/7", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, shared.CodeInternalError, body.Code)
	require.Contains(t, buf.String(), "panic recovered")
}

func TestAccessLogger_SkipsHealthChecks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name            string
		path            string
		logHealthChecks bool
		expectLogged    bool
	}{
		{name: "regular request", path: "/v1/devices/7/locations", expectLogged: true},
		{name: "health probe", path: "/v1/health"},
		{name: "admin probe", path: "/admin/readiness"},
		{name: "health probe with logging on", path: "/v1/liveness", logHealthChecks: true, expectLogged: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			log := logger.NewBufferedTestLogger(&buf)

			filter := middleware.NewHealthCheckFilter(tc.logHealthChecks)
			handler := filter.Middleware(middleware.AccessLogger(log, true)(okHandler()))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))

			if tc.expectLogged {
				require.Contains(t, buf.String(), tc.path)
			} else {
				require.Empty(t, buf.String())
			}
		})
	}
}

func TestMetricsMiddleware_LabelsByRoute(t *testing.T) {
	t.Parallel()

	metrics := testutil.NewMetrics()

	router := chi.NewRouter()
	router.Use(middleware.NewMetricsMiddleware(metrics).Middleware)
	router.Get("/v1/devices/{deviceId}", okHandler().ServeHTTP)

	for _, path := range []string{"/v1/devices/7", "/v1/devices/8"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, 2, metrics.Count("http_requests_total"))
	require.Equal(t, 2, metrics.Count("http_request_duration_seconds"))
	require.Equal(t, "/v1/devices/{deviceId}", metrics.LastAttribute("http_requests_total", "http.route"))
	require.Equal(t, "200", metrics.LastAttribute("http_requests_total", "http.status_code"))
}

func TestCORS(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		method         string
		origin         string
		expectedStatus int
		expectAllowed  bool
	}{
		{name: "same origin", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "allowed origin", method: http.MethodGet, origin: "https://dashboard.example.com", expectedStatus: http.StatusOK, expectAllowed: true},
		{name: "preflight", method: http.MethodOptions, origin: "https://dashboard.example.com", expectedStatus: http.StatusNoContent, expectAllowed: true},
		{name: "foreign origin", method: http.MethodGet, origin: "https://evil.example.com", expectedStatus: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			handler := middleware.CORS([]string{"https://dashboard.example.com"})(okHandler())

			req := httptest.NewRequest(tc.method, "/v1/alerts/unresolved", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tc.expectedStatus, rec.Code)

			if tc.expectAllowed {
				require.Equal(t, tc.origin, rec.Header().Get("Access-Control-Allow-Origin"))
			} else {
				require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		apiVersion  string
		wantVersion string
	}{
		{name: "advertises version", apiVersion: "v1", wantVersion: "v1"},
		{name: "omits empty version", apiVersion: "", wantVersion: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			middleware.SecurityHeaders(tc.apiVersion)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

			require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
			require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
			require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
			require.Equal(t, tc.wantVersion, rec.Header().Get("API-Version"))
		})
	}
}

func TestFlushableResponseWriter(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := middleware.NewFlushableResponseWriter(rec)

	w.WriteHeader(http.StatusAccepted)
	w.WriteHeader(http.StatusInternalServerError)
	_, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	w.Flush()

	require.Equal(t, http.StatusAccepted, w.StatusCode())
	require.Equal(t, uint64(5), w.BytesWritten())
	require.True(t, rec.Flushed)

	_, _, err = w.Hijack()
	require.ErrorIs(t, err, http.ErrNotSupported)
}
