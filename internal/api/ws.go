package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPingPeriod = 30 * time.Second
	wsQueueSize  = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The kiosk UI may be served from a dev server on another port.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveUpdates upgrades the request and pushes initial, then every value
// published through subscribe, until either side goes away. When the client
// falls behind, the oldest queued value is dropped; every value is a full
// snapshot so only the latest matters.
func serveUpdates[T any](w http.ResponseWriter, r *http.Request, initial T, subscribe func(func(T)) func()) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("Websocket upgrade failed", "path", r.URL.Path, "error", err)
		return
	}
	defer conn.Close()

	queue := make(chan T, wsQueueSize)
	queue <- initial
	unsubscribe := subscribe(func(v T) {
		for {
			select {
			case queue <- v:
				return
			default:
			}
			select {
			case <-queue:
			default:
			}
		}
	})
	defer unsubscribe()

	// Reads only detect the close; clients never send anything meaningful.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case v := <-queue:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(v); err != nil {
				slog.Debug("Websocket write failed", "path", r.URL.Path, "error", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
