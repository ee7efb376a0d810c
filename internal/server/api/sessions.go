package api

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/ayusman/handrelay/internal/pose"
	"github.com/ayusman/handrelay/internal/session"
	"github.com/ayusman/handrelay/internal/store"
)

// SessionHandler serves the session catalog.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

// ServeHTTP routes /api/sessions and /api/sessions/{id}.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions"), "/")

	if id == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type sessionResponse struct {
	ID          string  `json:"id"`
	ActionName  string  `json:"action_name"`
	FPS         float64 `json:"fps"`
	FrameCount  int     `json:"frame_count"`
	ValidFrames int     `json:"valid_frames"`
	Path        string  `json:"path"`
	CreatedAt   string  `json:"created_at"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type frameResponse struct {
	Index     int       `json:"index"`
	Valid     bool      `json:"valid"`
	Landmarks pose.Pose `json:"landmarks"`
	Error     string    `json:"error,omitempty"`
}

type sessionDetailResponse struct {
	sessionResponse
	Shape  string          `json:"shape"`
	Frames []frameResponse `json:"frames"`
}

func toResponse(s *store.Session) sessionResponse {
	return sessionResponse{
		ID:          s.ID,
		ActionName:  s.ActionName,
		FPS:         s.FPS,
		FrameCount:  s.FrameCount,
		ValidFrames: s.ValidFrames,
		Path:        s.Path,
		CreatedAt:   s.CreatedAt.Format(timeFormat),
	}
}

// list handles GET /api/sessions.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionResponse, 0, len(entries)),
	}
	for _, e := range entries {
		response.Sessions = append(response.Sessions, toResponse(e))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id}: catalog metadata plus every decoded frame.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	entry, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	s, err := session.LoadFile(entry.Path)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrFormat):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, os.ErrNotExist):
			writeError(w, http.StatusGone, "Session file is missing")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to read session")
		}
		return
	}

	response := sessionDetailResponse{
		sessionResponse: toResponse(entry),
		Shape:           s.Shape.String(),
		Frames:          make([]frameResponse, 0, s.Len()),
	}
	for i, f := range s.Frames {
		fr := frameResponse{Index: i, Valid: f.Valid(), Landmarks: f.Pose}
		if f.Err != nil {
			fr.Error = f.Err.Error()
		}
		response.Frames = append(response.Frames, fr)
	}

	writeJSON(w, http.StatusOK, response)
}

// delete handles DELETE /api/sessions/{id}. The file goes first; if it cannot be
// removed the row is kept.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	entry, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	if err := os.Remove(entry.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to remove session file", "path", entry.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to remove session file")
		return
	}

	if err := h.store.Sessions().Delete(id); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
