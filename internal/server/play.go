package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handrelay/internal/playback"
	"github.com/ayusman/handrelay/internal/pose"
	"github.com/ayusman/handrelay/internal/session"
	"github.com/ayusman/handrelay/internal/store"
)

type frameMessage struct {
	Type       string      `json:"type"`
	Index      int         `json:"index"`
	Total      int         `json:"total"`
	ActionName string      `json:"action_name"`
	Landmarks  pose.Pose   `json:"landmarks"`
	Bones      []pose.Bone `json:"bones"`
	Palm       []int       `json:"palm"`
}

type endMessage struct {
	Type      string `json:"type"`
	State     string `json:"state"`
	Rendered  int    `json:"rendered"`
	Skipped   int    `json:"skipped"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}

type controlMessage struct {
	Command string `json:"command"`
}

// wsSink sends one JSON message per rendered frame. It stays open until the client
// disconnects.
type wsSink struct {
	conn *websocket.Conn
	gone <-chan struct{}
}

func (s *wsSink) Render(f playback.RenderFrame) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(frameMessage{
		Type:       "frame",
		Index:      f.Index,
		Total:      f.Total,
		ActionName: f.ActionName,
		Landmarks:  f.Pose,
		Bones:      f.Bones,
		Palm:       f.Palm,
	})
}

func (s *wsSink) Open() bool {
	select {
	case <-s.gone:
		return false
	default:
		return true
	}
}

// PlayHandler replays a cataloged session over a WebSocket at its recorded cadence.
// Clients may send {"command": "pause"|"resume"|"stop"}.
type PlayHandler struct {
	store *store.Store
}

// NewPlayHandler creates a new PlayHandler backed by the catalog.
func NewPlayHandler(s *store.Store) *PlayHandler {
	return &PlayHandler{store: s}
}

// ServeHTTP handles GET /api/sessions/{id}/play. Lookup and load errors are reported as
// plain HTTP errors before the upgrade.
func (h *PlayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	id = strings.TrimSuffix(id, "/play")

	entry, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return
	}

	s, err := session.LoadFile(entry.Path)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrFormat):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, os.ErrNotExist):
			http.Error(w, "Session file is missing", http.StatusGone)
		default:
			http.Error(w, "Failed to read session", http.StatusInternalServerError)
		}
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	log := slog.Default().With("session", entry.ID)
	sink := &wsSink{conn: conn}
	engine := playback.New(sink, playback.WithLogger(log))
	if err := engine.LoadSession(s); err != nil {
		log.Error("failed to load session for playback", "error", err)
		return
	}

	gone := readUntilClosed(conn, func(data []byte) {
		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug("ignoring playback control message", "error", err)
			return
		}
		switch msg.Command {
		case "pause":
			engine.Pause()
		case "resume":
			engine.Resume()
		case "stop":
			engine.Stop()
		}
	})
	sink.gone = gone

	res, err := engine.Play(r.Context())
	end := endMessage{
		Type:      "end",
		State:     res.State.String(),
		Rendered:  res.Rendered,
		Skipped:   res.Skipped,
		ElapsedMS: res.Elapsed.Milliseconds(),
	}
	if err != nil {
		end.Error = err.Error()
		log.Warn("remote playback failed", "error", err)
	}

	select {
	case <-gone:
		return
	default:
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(end); err != nil {
		return
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}
