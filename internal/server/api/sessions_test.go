package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/handrelay/internal/pose"
	"github.com/ayusman/handrelay/internal/session"
	"github.com/ayusman/handrelay/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func completePose() pose.Pose {
	p := make(pose.Pose, pose.NumLandmarks)
	for i := range p {
		p[i] = pose.Landmark{X: 0.5, Y: float64(i) / 40, Z: -0.01}
	}
	return p
}

// registerSession saves a session with the given poses and catalogs it.
func registerSession(t *testing.T, s *store.Store, action string, poses ...pose.Pose) *store.Session {
	t.Helper()

	path := filepath.Join(t.TempDir(), action+".json")
	sess := session.New(action, 10, poses)
	if err := session.SaveFile(path, sess); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}
	entry, err := s.Sessions().Register(path, sess)
	if err != nil {
		t.Fatalf("failed to register session: %v", err)
	}
	return entry
}

func TestSessionHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s)
	entry := registerSession(t, s, "Wave", completePose(), completePose())

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response listSessionsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(response.Sessions))
	}
	got := response.Sessions[0]
	if got.ID != entry.ID || got.ActionName != "Wave" || got.FrameCount != 2 {
		t.Errorf("unexpected session %+v", got)
	}
}

func TestSessionHandler_ListEmpty(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	if rec.Body.String() != "{\"sessions\":[]}\n" {
		t.Errorf("expected empty list, got %q", rec.Body.String())
	}
}

func TestSessionHandler_Get(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s)
	entry := registerSession(t, s, "Point", completePose(), completePose()[:5])

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+entry.ID, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var response sessionDetailResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.ActionName != "Point" || response.ValidFrames != 1 {
		t.Errorf("unexpected metadata %+v", response.sessionResponse)
	}
	if len(response.Frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(response.Frames))
	}
	if !response.Frames[0].Valid || len(response.Frames[0].Landmarks) != pose.NumLandmarks {
		t.Errorf("frame 0 should be a complete pose, got %+v", response.Frames[0])
	}
	if response.Frames[1].Valid || response.Frames[1].Error == "" {
		t.Errorf("frame 1 should be flagged invalid, got %+v", response.Frames[1])
	}
}

func TestSessionHandler_Errors(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s)

	gone := registerSession(t, s, "Gone", completePose())
	if err := os.Remove(gone.Path); err != nil {
		t.Fatal(err)
	}

	corrupt := registerSession(t, s, "Corrupt", completePose())
	if err := os.WriteFile(corrupt.Path, []byte(`{"frames": 3}`), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"unknown id", http.MethodGet, "/api/sessions/nope", http.StatusNotFound},
		{"delete unknown id", http.MethodDelete, "/api/sessions/nope", http.StatusNotFound},
		{"missing file", http.MethodGet, "/api/sessions/" + gone.ID, http.StatusGone},
		{"corrupt file", http.MethodGet, "/api/sessions/" + corrupt.ID, http.StatusUnprocessableEntity},
		{"post collection", http.MethodPost, "/api/sessions", http.StatusMethodNotAllowed},
		{"put item", http.MethodPut, "/api/sessions/" + gone.ID, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSessionHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s)
	entry := registerSession(t, s, "Wave", completePose())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+entry.ID, nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if _, err := os.Stat(entry.Path); !os.IsNotExist(err) {
		t.Error("session file should be removed")
	}
	if _, err := s.Sessions().GetByID(entry.ID); err == nil {
		t.Error("catalog row should be removed")
	}
}

func TestSessionHandler_DeleteMissingFile(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s)
	entry := registerSession(t, s, "Wave", completePose())
	os.Remove(entry.Path)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+entry.ID, nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}
