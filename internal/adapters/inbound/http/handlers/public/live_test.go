package public_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/handlers/public"
	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/testutil"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const readTimeout = 2 * time.Second

func newLiveServer(t *testing.T, h *testutil.Harness, opts ...public.TrackerHandlerOption) (*httptest.Server, *public.TrackerHandler) {
	t.Helper()

	handler := public.NewTrackerHandler(h.App, logger.NewTestLogger(), opts...)
	server := httptest.NewServer(public.HandlerWithOptions(handler, public.ChiServerOptions{
		BaseURL:          "/v1",
		ErrorHandlerFunc: public.ParamErrorHandler,
	}))

	t.Cleanup(func() {
		handler.CloseLive()
		server.Close()
	})

	return server, handler
}

func liveURL(server *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

func dial(t *testing.T, url string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.DialContext(t.Context(), url, nil)
	if conn != nil {
		t.Cleanup(func() {
			_ = conn.Close()
		})
	}

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	return conn, resp, err
}

func TestStreamLive_RelaysDeviceUpdates(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(7)
	server, _ := newLiveServer(t, h, public.WithLiveUpdates(h.Broadcaster, config.Live{}))

	conn, _, err := dial(t, liveURL(server, "/v1/devices/7/live"))
	require.NoError(t, err)

	topic := model.LocationTopic(7)
	require.Eventually(t, func() bool { return h.Broadcaster.Subscribers(topic) == 1 }, readTimeout, 5*time.Millisecond)

	payload := []byte(`{"deviceId":7,"latitude":40.7128,"longitude":-74.006}`)
	require.NoError(t, h.Broadcaster.Publish(t.Context(), topic, payload))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))

	messageType, got, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, messageType)
	require.JSONEq(t, string(payload), string(got))
}

func TestStreamLive_SubscribesToRequestedKinds(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(7)
	server, _ := newLiveServer(t, h, public.WithLiveUpdates(h.Broadcaster, config.Live{}))

	_, _, err := dial(t, liveURL(server, "/v1/devices/7/live?kinds=alerts"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.Broadcaster.Subscribers(model.AlertTopic(7)) == 1 }, readTimeout, 5*time.Millisecond)
	require.Zero(t, h.Broadcaster.Subscribers(model.LocationTopic(7)))
	require.Zero(t, h.Broadcaster.Subscribers(model.EventTopic(7)))
}

func TestStreamLive_RejectsBeforeUpgrade(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		path       string
		live       bool
		wantStatus int
	}{
		{name: "unknown device", path: "/v1/devices/999/live", live: true, wantStatus: http.StatusNotFound},
		{name: "unknown kind", path: "/v1/devices/7/live?kinds=weather", live: true, wantStatus: http.StatusBadRequest},
		{name: "live updates disabled", path: "/v1/devices/7/live", live: false, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := testutil.NewHarness(7)

			var opts []public.TrackerHandlerOption
			if tc.live {
				opts = append(opts, public.WithLiveUpdates(h.Broadcaster, config.Live{}))
			}

			server, _ := newLiveServer(t, h, opts...)

			_, resp, err := dial(t, liveURL(server, tc.path))
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			require.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}

func TestStreamLive_PlainRequestFailsUpgrade(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(7)
	server, _ := newLiveServer(t, h, public.WithLiveUpdates(h.Broadcaster, config.Live{}))

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL+"/v1/devices/7/live", nil)
	require.NoError(t, err)

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Eventually(t, func() bool { return h.Broadcaster.Subscribers(model.LocationTopic(7)) == 0 }, readTimeout, 5*time.Millisecond)
}

func TestStreamLive_CloseLiveEndsStreams(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(7)
	server, handler := newLiveServer(t, h, public.WithLiveUpdates(h.Broadcaster, config.Live{}))

	conn, _, err := dial(t, liveURL(server, "/v1/devices/7/live?kinds=locations"))
	require.NoError(t, err)

	topic := model.LocationTopic(7)
	require.Eventually(t, func() bool { return h.Broadcaster.Subscribers(topic) == 1 }, readTimeout, 5*time.Millisecond)

	handler.CloseLive()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))

	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)

	require.Eventually(t, func() bool { return h.Broadcaster.Subscribers(topic) == 0 }, readTimeout, 5*time.Millisecond)
}
