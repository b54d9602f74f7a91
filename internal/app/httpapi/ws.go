package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var opsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Bearer tokens gate this endpoint, so cross-origin browser pages
	// cannot reach it with credentials.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsOps streams hub events to an admin client until it disconnects.
func (h *handler) wsOps(w http.ResponseWriter, r *http.Request) {
	conn, err := opsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.log.WithContext(r.Context()).WithError(err).Warn("ops stream upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := h.app.Hub.Subscribe()
	defer cancel()

	h.log.WithContext(r.Context()).Info("ops stream connected")

	// Ops clients never send payloads, but reading is how close frames
	// and pong responses get processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			h.log.WithContext(r.Context()).Debug("ops stream closed by client")
			return
		case <-r.Context().Done():
			return
		}
	}
}
