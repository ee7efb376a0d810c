package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handrelay/internal/detector"
	"github.com/ayusman/handrelay/internal/pose"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// writeWait bounds every WebSocket write.
const writeWait = 2 * time.Second

type handMessage struct {
	Landmarks  pose.Pose `json:"landmarks"`
	Normalized pose.Pose `json:"normalized"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

type landmarksMessage struct {
	Hands     []handMessage `json:"hands"`
	Timestamp int64         `json:"timestamp"`
}

func toLandmarksMessage(hands []detector.Hand, now time.Time) landmarksMessage {
	msg := landmarksMessage{
		Hands:     make([]handMessage, 0, len(hands)),
		Timestamp: now.UnixMilli(),
	}
	for _, h := range hands {
		msg.Hands = append(msg.Hands, handMessage{
			Landmarks:  h.Pose,
			Normalized: h.Pose.Normalize(),
			Handedness: h.Handedness,
			Score:      h.Score,
		})
	}
	return msg
}

// LandmarksHandler streams the hands detected by the capture loop to WebSocket clients.
type LandmarksHandler struct {
	source Capture
}

// NewLandmarksHandler creates a new LandmarksHandler fed by source.
func NewLandmarksHandler(source Capture) *LandmarksHandler {
	return &LandmarksHandler{source: source}
}

// ServeHTTP upgrades the connection and forwards every detection until either side
// goes away.
func (h *LandmarksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	hands, cancel := h.source.Subscribe()
	defer cancel()

	gone := readUntilClosed(conn, nil)

	for {
		select {
		case <-gone:
			return
		case hs, ok := <-hands:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "capture stopped"),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(toLandmarksMessage(hs, time.Now())); err != nil {
				slog.Debug("landmarks client dropped", "error", err)
				return
			}
		}
	}
}

// readUntilClosed drains incoming messages on its own goroutine, passing text messages
// to onText, and closes the returned channel once the peer disconnects.
func readUntilClosed(conn *websocket.Conn, onText func([]byte)) <-chan struct{} {
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.TextMessage && onText != nil {
				onText(data)
			}
		}
	}()
	return gone
}
