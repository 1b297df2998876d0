package admin_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/handlers/admin"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
)

type AdminHandlerTestSuite struct {
	suite.Suite
}

func TestAdminHandlerTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(AdminHandlerTestSuite))
}

func newRouter(h *testutil.Harness, cache ports.LocationCache) http.Handler {
	return admin.HandlerWithOptions(admin.NewAdminHandler(cache, h.App), admin.ChiServerOptions{
		BaseRouter: chi.NewRouter(),
	})
}

func serve(handler http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	return rec
}

func decode(s *AdminHandlerTestSuite, rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))

	return body
}

func (s *AdminHandlerTestSuite) TestGetCacheHealth() {
	cases := []struct {
		name           string
		withCache      bool
		healthy        bool
		expectedStatus int
		expectedBody   string
	}{
		{name: "healthy cache", withCache: true, healthy: true, expectedStatus: http.StatusOK, expectedBody: "healthy"},
		{name: "unhealthy cache", withCache: true, expectedStatus: http.StatusServiceUnavailable, expectedBody: "unhealthy"},
		{name: "no cache configured", expectedStatus: http.StatusServiceUnavailable, expectedBody: "unavailable"},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			h := testutil.NewHarness(7)
			h.Cache.Healthy = tc.healthy

			var cache ports.LocationCache
			if tc.withCache {
				cache = h.Cache
			}

			rec := serve(newRouter(h, cache), http.MethodGet, "/admin/cache/health")

			s.Require().Equal(tc.expectedStatus, rec.Code)
			s.Require().Equal(tc.expectedBody, decode(s, rec)["status"])
		})
	}
}

func (s *AdminHandlerTestSuite) TestPurgeEndpoints() {
	cases := []struct {
		name           string
		method         string
		target         string
		expectedStatus int
		expectedPurge  string
	}{
		{name: "purge all", method: http.MethodDelete, target: "/admin/cache", expectedStatus: http.StatusOK, expectedPurge: "all"},
		{name: "purge device", method: http.MethodDelete, target: "/admin/cache/devices/7", expectedStatus: http.StatusOK, expectedPurge: "device:7"},
		{name: "purge by pattern", method: http.MethodDelete, target: "/admin/cache/pattern?pattern=gpstracker:*", expectedStatus: http.StatusOK, expectedPurge: "gpstracker:*"},
		{name: "non numeric device", method: http.MethodDelete, target: "/admin/cache/devices/abc", expectedStatus: http.StatusBadRequest},
		{name: "non positive device", method: http.MethodDelete, target: "/admin/cache/devices/0", expectedStatus: http.StatusBadRequest},
		{name: "missing pattern", method: http.MethodDelete, target: "/admin/cache/pattern", expectedStatus: http.StatusBadRequest},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			h := testutil.NewHarness(7)

			rec := serve(newRouter(h, h.Cache), tc.method, tc.target)

			s.Require().Equal(tc.expectedStatus, rec.Code, rec.Body.String())

			if tc.expectedPurge != "" {
				s.Require().Equal([]string{tc.expectedPurge}, h.Cache.Purges())
			} else {
				s.Require().Empty(h.Cache.Purges())
			}
		})
	}
}

func (s *AdminHandlerTestSuite) TestDeadLetters() {
	h := testutil.NewHarness(7)
	router := newRouter(h, h.Cache)

	for range 3 {
		s.Require().NoError(h.Queue.Add(s.T().Context(), ports.DeadLetter{
			Message: model.NewLocationMessage(7, 1, 1, nil),
			Reason:  "device not found",
		}))
	}

	rec := serve(router, http.MethodGet, "/admin/dead-letters?limit=2")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().InDelta(2, decode(s, rec)["count"], 0)

	rec = serve(router, http.MethodPost, "/admin/dead-letters/replay?limit=2")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().InDelta(2, decode(s, rec)["replayed"], 0)
	s.Require().Len(h.Queue.DeadLetters(), 1)

	rec = serve(router, http.MethodGet, "/admin/dead-letters?limit=0")
	s.Require().Equal(http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodGet, "/admin/dead-letters?limit=ten")
	s.Require().Equal(http.StatusBadRequest, rec.Code)
}

func (s *AdminHandlerTestSuite) TestHealthEndpoints() {
	h := testutil.NewHarness(7)
	router := newRouter(h, h.Cache)

	for _, target := range []string{"/admin/liveness", "/admin/readiness", "/admin/health"} {
		rec := serve(router, http.MethodGet, target)

		s.Require().Equal(http.StatusOK, rec.Code, target)
		s.Require().Equal(string(model.HealthStatusOK), decode(s, rec)["status"], target)
	}
}
