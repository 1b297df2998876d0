package public

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/architeacher/gpstracker/internal/adapters/inbound/http/handlers/shared"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/usecases/queries"
	"github.com/gorilla/websocket"
)

const maxViewerMessageSize = 512

// StreamLive relays the device's live updates over a websocket until the
// viewer disconnects or the server shuts down. Nothing is replayed.
func (h *TrackerHandler) StreamLive(w http.ResponseWriter, r *http.Request, deviceId DeviceId, params StreamLiveParams) {
	if h.broadcaster == nil {
		shared.WriteError(w, http.StatusServiceUnavailable, shared.CodeServiceUnavailable, "live updates are disabled")

		return
	}

	deviceID := model.DeviceID(deviceId)

	if _, err := h.app.Queries.GetDevice.Execute(r.Context(), queries.GetDeviceQuery{DeviceID: deviceID}); err != nil {
		h.errors.Write(w, r, err)

		return
	}

	var kinds []string
	if params.Kinds != nil {
		kinds = *params.Kinds
	}

	topics, err := model.LiveTopics(deviceID, kinds)
	if err != nil {
		h.errors.Write(w, r, err)

		return
	}

	// The stream outlives the request deadline.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	sub, err := h.broadcaster.Subscribe(ctx, topics...)
	if err != nil {
		h.errors.Write(w, r, fmt.Errorf("%w: %w", model.ErrBroadcastFailed, err))

		return
	}

	defer func() {
		_ = sub.Close()
	}()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  h.live.ReadBufferSize,
		WriteBufferSize: h.live.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l := h.log.WithContext(r.Context())
		l.Warn().Err(err).Msg("live upgrade failed")

		return
	}

	defer func() {
		_ = conn.Close()
	}()

	log := h.log.WithContext(r.Context()).With().
		Str("device_id", deviceID.String()).
		Strs("topics", topics).
		Logger()

	log.Debug().Msg("live viewer connected")
	defer log.Debug().Msg("live viewer disconnected")

	viewerGone := make(chan struct{})
	go h.readViewer(conn, viewerGone)

	ticker := time.NewTicker(h.live.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-sub.C():
			if !ok {
				h.closeViewer(conn, websocket.CloseGoingAway, "subscription ended")

				return
			}

			_ = conn.SetWriteDeadline(time.Now().Add(h.live.WriteWait))

			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debug().Err(err).Msg("live write failed")

				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.live.WriteWait)); err != nil {
				return
			}
		case <-viewerGone:
			return
		case <-h.shutdown:
			h.closeViewer(conn, websocket.CloseGoingAway, "server shutting down")

			return
		}
	}
}

// CloseLive ends every open live stream.
func (h *TrackerHandler) CloseLive() {
	h.closeOnce.Do(func() {
		close(h.shutdown)
	})
}

// readViewer drains control frames so pongs are seen; viewers send no data.
func (h *TrackerHandler) readViewer(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)

	conn.SetReadLimit(maxViewerMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.live.PongWait))

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.live.PongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *TrackerHandler) closeViewer(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(h.live.WriteWait),
	)
}

func (h *TrackerHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.live.AllowedOrigins) == 0 {
		return true
	}

	return slices.Contains(h.live.AllowedOrigins, "*") || slices.Contains(h.live.AllowedOrigins, origin)
}
