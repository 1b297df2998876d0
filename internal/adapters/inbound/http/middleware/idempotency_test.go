package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/gpstracker/internal/adapters/repos"
	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/internal/infrastructure"
	"github.com/architeacher/gpstracker/pkg/idempotency"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/stretchr/testify/require"
)

const testIdempotencyKey = "550e8400-e29b-41d4-a716-446655440000"

type idempotencyFixture struct {
	mr      *miniredis.Miniredis
	repo    *repos.IdempotencyRepository
	cfg     config.Idempotency
	calls   *atomic.Int32
	handler http.Handler
}

func newIdempotencyFixture(t *testing.T, mutate func(*config.Idempotency)) *idempotencyFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := infrastructure.NewKeyDBClient(config.Cache{
		Address:      mr.Addr(),
		PoolSize:     2,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}, logger.NewTestLogger())
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Idempotency{
		Enabled:          true,
		CacheTTL:         time.Hour,
		LockTTL:          30 * time.Second,
		RequiredMethods:  []string{http.MethodPost},
		HeaderName:       "Idempotency-Key",
		ReplayedHeader:   "Idempotent-Replayed",
		GracefulDegraded: true,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	calls := &atomic.Int32{}
	repo := repos.NewIdempotencyRepository(client)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		key, ok := idempotency.FromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, testIdempotencyKey, key)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Location", "/v1/devices/7/alerts")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	})

	return &idempotencyFixture{
		mr:      mr,
		repo:    repo,
		cfg:     cfg,
		calls:   calls,
		handler: middleware.IdempotencyMiddleware(repo, cfg, logger.NewTestLogger())(next),
	}
}

func (f *idempotencyFixture) post(body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/alerts", strings.NewReader(body))
	if key != "" {
		req.Header.Set(f.cfg.HeaderName, key)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	return rec
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	t.Parallel()

	f := newIdempotencyFixture(t, nil)
	body := `{"deviceId":7,"type":"speeding","message":"too fast"}`

	first := f.post(body, testIdempotencyKey)
	require.Equal(t, http.StatusCreated, first.Code)
	require.Empty(t, first.Header().Get(f.cfg.ReplayedHeader))

	second := f.post(body, testIdempotencyKey)
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "true", second.Header().Get(f.cfg.ReplayedHeader))
	require.Equal(t, "/v1/devices/7/alerts", second.Header().Get("Location"))
	require.JSONEq(t, first.Body.String(), second.Body.String())

	require.Equal(t, int32(1), f.calls.Load())
}

func TestIdempotency_RejectsReusedKeyWithDifferentPayload(t *testing.T) {
	t.Parallel()

	f := newIdempotencyFixture(t, nil)

	require.Equal(t, http.StatusCreated, f.post(`{"deviceId":7,"type":"speeding","message":"a"}`, testIdempotencyKey).Code)

	rec := f.post(`{"deviceId":7,"type":"speeding","message":"b"}`, testIdempotencyKey)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), middleware.CodeIdempotencyKeyReused)
	require.Equal(t, int32(1), f.calls.Load())
}

func TestIdempotency_PassThrough(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*config.Idempotency)
		key    string
	}{
		{name: "without key"},
		{name: "disabled", key: testIdempotencyKey, mutate: func(cfg *config.Idempotency) { cfg.Enabled = false }},
		{name: "method not covered", key: testIdempotencyKey, mutate: func(cfg *config.Idempotency) { cfg.RequiredMethods = []string{http.MethodPut} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newIdempotencyFixture(t, tc.mutate)
			f.handler = middleware.IdempotencyMiddleware(f.repo, f.cfg, logger.NewTestLogger())(
				http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					f.calls.Add(1)
					w.WriteHeader(http.StatusCreated)
				}),
			)

			require.Equal(t, http.StatusCreated, f.post(`{}`, tc.key).Code)
			require.Equal(t, http.StatusCreated, f.post(`{}`, tc.key).Code)
			require.Equal(t, int32(2), f.calls.Load())
		})
	}
}

func TestIdempotency_InvalidKey(t *testing.T) {
	t.Parallel()

	f := newIdempotencyFixture(t, nil)

	rec := f.post(`{}`, "short")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), middleware.CodeInvalidIdempotencyKey)
	require.Zero(t, f.calls.Load())
}

func TestIdempotency_ConcurrentRequestIsRejected(t *testing.T) {
	t.Parallel()

	f := newIdempotencyFixture(t, nil)

	cacheKey := idempotency.BuildCacheKey(http.MethodPost, "/v1/alerts", testIdempotencyKey)
	acquired, err := f.repo.SetLock(t.Context(), cacheKey, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	rec := f.post(`{}`, testIdempotencyKey)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), middleware.CodeRequestInProgress)
	require.Zero(t, f.calls.Load())
}

func TestIdempotency_CacheFailure(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		graceful       bool
		expectedStatus int
		expectedCalls  int32
	}{
		{name: "graceful degradation serves the request", graceful: true, expectedStatus: http.StatusCreated, expectedCalls: 1},
		{name: "strict mode rejects", expectedStatus: http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newIdempotencyFixture(t, func(cfg *config.Idempotency) { cfg.GracefulDegraded = tc.graceful })
			f.mr.Close()

			rec := f.post(`{}`, testIdempotencyKey)
			require.Equal(t, tc.expectedStatus, rec.Code)
			require.Equal(t, tc.expectedCalls, f.calls.Load())
		})
	}
}
