package http_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	inboundhttp "github.com/architeacher/gpstracker/internal/adapters/inbound/http"
	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/handlers/shared"
	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/testutil"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const waitFor = 2 * time.Second

type envelope[T any] struct {
	Data T `json:"data"`
}

func testConfig() *config.ServiceConfig {
	return &config.ServiceConfig{
		App:              config.App{ServiceName: "svc-tracker", APIVersion: "v1"},
		PublicHTTPServer: config.PublicHTTPServer{RequestTimeout: 5 * time.Second},
		Live:             config.Live{AllowedOrigins: []string{"*"}},
		CircuitBreaker:   config.CircuitBreakerConfig{Timeout: 30 * time.Second},
	}
}

func newPublicRouter(t *testing.T, h *testutil.Harness) http.Handler {
	t.Helper()

	router, err := inboundhttp.NewRouter(inboundhttp.RouterConfig{
		App:         h.App,
		Logger:      logger.NewTestLogger(),
		Config:      testConfig(),
		Broadcaster: h.Broadcaster,
	})
	require.NoError(t, err)

	return router
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var body envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body.Data
}

func TestRouter_LastLocationAfterSubmit(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(7)
	router := newPublicRouter(t, h)

	rec := do(t, router, http.MethodPost, "/v1/devices/7/locations", `{"latitude":40.7128,"longitude":-74.0060}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	receipt := decodeData[model.Receipt](t, rec)
	require.NotEmpty(t, receipt.MessageID)
	require.Equal(t, model.DeviceID(7), receipt.DeviceID)

	h.RunConsumers(t)

	require.Eventually(t, func() bool {
		return do(t, router, http.MethodGet, "/v1/devices/7/locations/last", "").Code == http.StatusOK
	}, waitFor, 5*time.Millisecond)

	last := decodeData[model.LocationSample](t, do(t, router, http.MethodGet, "/v1/devices/7/locations/last", ""))
	require.InDelta(t, 40.7128, last.Latitude, 1e-9)
	require.InDelta(t, -74.0060, last.Longitude, 1e-9)
	require.Equal(t, model.DeviceID(7), last.DeviceID)
}

func TestRouter_UnknownDeviceStoresNothing(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(7)
	router := newPublicRouter(t, h)
	h.RunConsumers(t)

	rec := do(t, router, http.MethodPost, "/v1/devices/999/locations", `{"latitude":10,"longitude":20}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool { return len(h.Queue.DeadLetters()) == 1 }, waitFor, 5*time.Millisecond)
	require.Empty(t, h.Store.Locations())

	rec = do(t, router, http.MethodGet, "/v1/devices/999/locations/last", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_InvalidCoordinatesAreRejected(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(7)
	router := newPublicRouter(t, h)
	h.RunConsumers(t)

	cases := []struct {
		name string
		body string
	}{
		{name: "latitude above range", body: `{"latitude":91,"longitude":0}`},
		{name: "longitude below range", body: `{"latitude":0,"longitude":-180.5}`},
	}

	for _, tc := range cases {
		rec := do(t, router, http.MethodPost, "/v1/devices/7/locations", tc.body)
		require.Equal(t, http.StatusAccepted, rec.Code, tc.name)
	}

	require.Eventually(t, func() bool { return len(h.Queue.DeadLetters()) == len(cases) }, waitFor, 5*time.Millisecond)
	require.Empty(t, h.Store.Locations())
}

func TestRouter_PreservesPerDeviceOrder(t *testing.T) {
	t.Parallel()

	const samples = 25

	h := testutil.NewHarness(7, 8)
	router := newPublicRouter(t, h)

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := range samples {
		for _, device := range []int{7, 8} {
			body := fmt.Sprintf(`{"latitude":%d,"longitude":%d,"timestamp":%q}`,
				i, device, start.Add(time.Duration(i)*time.Second).Format(time.RFC3339))

			rec := do(t, router, http.MethodPost, fmt.Sprintf("/v1/devices/%d/locations", device), body)
			require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		}
	}

	h.RunConsumers(t)

	require.Eventually(t, func() bool { return len(h.Store.Locations()) == 2*samples }, waitFor, 5*time.Millisecond)

	next := map[model.DeviceID]float64{}
	for _, sample := range h.Store.Locations() {
		require.InDelta(t, next[sample.DeviceID], sample.Latitude, 1e-9, "device %d", sample.DeviceID)
		next[sample.DeviceID]++
	}

	last := decodeData[model.LocationSample](t, do(t, router, http.MethodGet, "/v1/devices/8/locations/last", ""))
	require.InDelta(t, float64(samples-1), last.Latitude, 1e-9)
}

func TestRouter_AlertLifecycle(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(7)
	router := newPublicRouter(t, h)

	rec := do(t, router, http.MethodPost, "/v1/alerts", `{"deviceId":7,"type":"speeding","message":"over 120 km/h"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "/v1/devices/7/alerts", rec.Header().Get(shared.HeaderLocation))

	created := decodeData[model.Alert](t, rec)
	require.False(t, created.Resolved)

	unresolved := decodeData[[]model.Alert](t, do(t, router, http.MethodGet, "/v1/alerts/unresolved", ""))
	require.Len(t, unresolved, 1)
	require.Equal(t, created.ID, unresolved[0].ID)

	rec = do(t, router, http.MethodPost, fmt.Sprintf("/v1/alerts/%d/resolve", created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resolved := decodeData[model.Alert](t, rec)
	require.True(t, resolved.Resolved)
	require.NotNil(t, resolved.ResolvedAt)

	unresolved = decodeData[[]model.Alert](t, do(t, router, http.MethodGet, "/v1/alerts/unresolved", ""))
	require.Empty(t, unresolved)

	deviceAlerts := decodeData[[]model.Alert](t, do(t, router, http.MethodGet, "/v1/devices/7/alerts", ""))
	require.Len(t, deviceAlerts, 1)
	require.True(t, deviceAlerts[0].Resolved)

	rec = do(t, router, http.MethodPost, "/v1/alerts/9999/resolve", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RequestErrors(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(7)
	router := newPublicRouter(t, h)

	cases := []struct {
		name         string
		method       string
		path         string
		body         string
		expectedCode int
		expectedErr  string
	}{
		{
			name:         "malformed body",
			method:       http.MethodPost,
			path:         "/v1/devices/7/locations",
			body:         `{"latitude":`,
			expectedCode: http.StatusBadRequest,
			expectedErr:  shared.CodeInvalidJSON,
		},
		{
			name:         "non numeric device id",
			method:       http.MethodGet,
			path:         "/v1/devices/abc/locations/last",
			expectedCode: http.StatusBadRequest,
			expectedErr:  shared.CodeInvalidDeviceID,
		},
		{
			name:         "alert for unknown device",
			method:       http.MethodPost,
			path:         "/v1/alerts",
			body:         `{"deviceId":999,"type":"custom","message":"hello"}`,
			expectedCode: http.StatusNotFound,
			expectedErr:  shared.CodeNotFound,
		},
		{
			name:         "unknown route",
			method:       http.MethodGet,
			path:         "/v1/nowhere",
			expectedCode: http.StatusNotFound,
			expectedErr:  shared.CodeNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := do(t, router, tc.method, tc.path, tc.body)
			require.Equal(t, tc.expectedCode, rec.Code, rec.Body.String())

			var body shared.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tc.expectedErr, body.Code)
		})
	}
}

func TestRouter_QueueUnavailable(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(7)
	h.Queue.PublishErr = model.ErrQueueUnavailable
	router := newPublicRouter(t, h)

	rec := do(t, router, http.MethodPost, "/v1/devices/7/locations", `{"latitude":1,"longitude":2}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "30", rec.Header().Get(shared.HeaderRetryAfter))
}

type AdminRouterTestSuite struct {
	suite.Suite
}

func TestAdminRouterTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(AdminRouterTestSuite))
}

func (s *AdminRouterTestSuite) TestNewAdminRouter_RoutesRegistered() {
	h := testutil.NewHarness(7)

	router := inboundhttp.NewAdminRouter(inboundhttp.AdminRouterConfig{
		App:           h.App,
		LocationCache: h.Cache,
		Logger:        logger.NewTestLogger(),
	})

	cases := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{name: "cache health", method: http.MethodGet, path: "/admin/cache/health", expectedStatus: http.StatusOK},
		{name: "purge all", method: http.MethodDelete, path: "/admin/cache", expectedStatus: http.StatusOK},
		{name: "purge device", method: http.MethodDelete, path: "/admin/cache/devices/7", expectedStatus: http.StatusOK},
		{name: "purge by pattern", method: http.MethodDelete, path: "/admin/cache/pattern?pattern=gpstracker:*", expectedStatus: http.StatusOK},
		{name: "dead letters", method: http.MethodGet, path: "/admin/dead-letters", expectedStatus: http.StatusOK},
		{name: "replay dead letters", method: http.MethodPost, path: "/admin/dead-letters/replay", expectedStatus: http.StatusOK},
		{name: "liveness", method: http.MethodGet, path: "/admin/liveness", expectedStatus: http.StatusOK},
		{name: "readiness", method: http.MethodGet, path: "/admin/readiness", expectedStatus: http.StatusOK},
		{name: "health", method: http.MethodGet, path: "/admin/health", expectedStatus: http.StatusOK},
		{name: "unknown", method: http.MethodGet, path: "/admin/unknown", expectedStatus: http.StatusNotFound},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))

			s.Require().Equal(tc.expectedStatus, rec.Code, rec.Body.String())
		})
	}
}

func (s *AdminRouterTestSuite) TestNewAdminRouter_WithoutCache() {
	h := testutil.NewHarness(7)

	router := inboundhttp.NewAdminRouter(inboundhttp.AdminRouterConfig{
		App:    h.App,
		Logger: logger.NewTestLogger(),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/cache/health", nil))

	s.Require().Equal(http.StatusServiceUnavailable, rec.Code)
}
