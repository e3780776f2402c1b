package status

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteTimeout = 10 * time.Second
	wsBuffer       = 32
)

// RegisterRoutes mounts the status endpoints on the given router.
func RegisterRoutes(r chi.Router, hub *Hub, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	r.Get("/api/status", handleGet(hub))
	r.Get("/ws/status", handleStream(hub, logger))
}

func handleGet(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(hub.Snapshot())
	}
}

// handleStream sends the current state, then every subsequent event, until
// the client goes away.
func handleStream(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("status: websocket upgrade", "error", err)
			return
		}
		defer conn.Close()

		events, cancel := hub.Subscribe(wsBuffer)
		defer cancel()

		// Reads only serve to notice the client closing.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						logger.Debug("status: websocket read", "error", err)
					}
					return
				}
			}
		}()

		initial := Event{Type: EventStatus, State: hub.Snapshot(), At: time.Now()}
		if err := writeEvent(conn, initial); err != nil {
			return
		}

		for {
			select {
			case <-gone:
				return
			case <-r.Context().Done():
				return
			case evt, ok := <-events:
				if !ok {
					conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
						time.Now().Add(wsWriteTimeout))
					return
				}
				if err := writeEvent(conn, evt); err != nil {
					logger.Debug("status: websocket write", "error", err)
					return
				}
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, evt Event) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(evt)
}
