package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handrelay/internal/app"
	"github.com/ayusman/handrelay/internal/detector"
	"github.com/ayusman/handrelay/internal/pose"
	"github.com/ayusman/handrelay/internal/recorder"
	"github.com/ayusman/handrelay/internal/session"
	"github.com/ayusman/handrelay/internal/store"
)

// fakeCapture broadcasts whatever is pushed to it.
type fakeCapture struct {
	mu        sync.Mutex
	subs      []chan []detector.Hand
	recording bool
}

func (f *fakeCapture) Subscribe() (<-chan []detector.Hand, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan []detector.Hand, 8)
	f.subs = append(f.subs, ch)
	return ch, func() {}
}

func (f *fakeCapture) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeCapture) push(hands []detector.Hand) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- hands:
		default:
		}
	}
}

func (f *fakeCapture) StartRecording(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recording = true
	return nil
}

func (f *fakeCapture) isRecording() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recording
}

func (f *fakeCapture) StopRecording() (*app.SavedSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.recording {
		return nil, app.ErrNotRecording
	}
	f.recording = false
	return &app.SavedSession{Path: "x.json", Frames: 1}, nil
}

func (f *fakeCapture) RecordingStatus() (recorder.Status, *recorder.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recording {
		return recorder.StatusRecording, &recorder.Info{}, nil
	}
	return recorder.StatusIdle, nil, nil
}

func waitForSubscriber(t *testing.T, c *fakeCapture, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.subscribers() < n {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func completePose() pose.Pose {
	p := make(pose.Pose, pose.NumLandmarks)
	for i := range p {
		p[i] = pose.Landmark{X: 0.3 + float64(i)/100, Y: 0.2 + float64(i)/50, Z: -0.02}
	}
	return p
}

func newCatalog(t *testing.T, fps float64, poses ...pose.Pose) (*store.Store, *store.Session) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	path := filepath.Join(dir, "Wave.json")
	sess := session.New("Wave", fps, poses)
	if err := session.SaveFile(path, sess); err != nil {
		t.Fatal(err)
	}
	entry, err := s.Sessions().Register(path, sess)
	if err != nil {
		t.Fatal(err)
	}
	return s, entry
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func TestAPI_SessionWorkflow(t *testing.T) {
	s, entry := newCatalog(t, 10, completePose())

	ts := httptest.NewServer(New(Config{Store: s}))
	defer ts.Close()
	client := ts.Client()

	resp, err := client.Get(ts.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("GET /api/sessions error = %v", err)
	}
	var listed struct {
		Sessions []struct {
			ID string `json:"id"`
		} `json:"sessions"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()
	if len(listed.Sessions) != 1 || listed.Sessions[0].ID != entry.ID {
		t.Fatalf("listed = %+v", listed)
	}

	resp, _ = client.Get(ts.URL + "/api/sessions/" + entry.ID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET item status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+entry.ID, nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	resp.Body.Close()

	resp, _ = client.Get(ts.URL + "/api/sessions/" + entry.ID)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()
}

func TestAPI_RemotePlayback(t *testing.T) {
	s, entry := newCatalog(t, 100, completePose(), completePose()[:4], completePose())

	ts := httptest.NewServer(New(Config{Store: s}))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/api/sessions/"+entry.ID+"/play"), nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var frames []frameMessage
	var end endMessage
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read error = %v", err)
		}
		var kind struct {
			Type string `json:"type"`
		}
		json.Unmarshal(data, &kind)
		if kind.Type == "end" {
			json.Unmarshal(data, &end)
			break
		}
		var f frameMessage
		json.Unmarshal(data, &f)
		frames = append(frames, f)
	}

	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].Index != 1 || frames[1].Index != 3 || frames[0].Total != 3 {
		t.Errorf("frame indices = %d, %d of %d", frames[0].Index, frames[1].Index, frames[0].Total)
	}
	want := completePose().Flip()[pose.IndexTip]
	if frames[0].Landmarks[pose.IndexTip] != want {
		t.Errorf("landmark = %+v, want flipped %+v", frames[0].Landmarks[pose.IndexTip], want)
	}
	if len(frames[0].Bones) != len(pose.Bones) || len(frames[0].Palm) != len(pose.PalmIndices) {
		t.Errorf("bones/palm = %d/%d", len(frames[0].Bones), len(frames[0].Palm))
	}
	if end.State != "finished" || end.Rendered != 2 || end.Skipped != 1 {
		t.Errorf("end = %+v", end)
	}
}

func TestAPI_RemotePlaybackStop(t *testing.T) {
	poses := make([]pose.Pose, 50)
	for i := range poses {
		poses[i] = completePose()
	}
	s, entry := newCatalog(t, 20, poses...)

	ts := httptest.NewServer(New(Config{Store: s}))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/api/sessions/"+entry.ID+"/play"), nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read first frame: %v", err)
	}
	if err := conn.WriteJSON(controlMessage{Command: "stop"}); err != nil {
		t.Fatal(err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read error = %v", err)
		}
		var end endMessage
		json.Unmarshal(data, &end)
		if end.Type == "end" {
			if end.State != "aborted" || end.Rendered >= len(poses) {
				t.Errorf("end = %+v", end)
			}
			return
		}
	}
}

func TestAPI_PlayUnknownSession(t *testing.T) {
	s, _ := newCatalog(t, 10, completePose())
	ts := httptest.NewServer(New(Config{Store: s}))
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "/api/sessions/nope/play"), nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("response = %v, want 404", resp)
	}
}

func TestAPI_LiveLandmarks(t *testing.T) {
	capture := &fakeCapture{}
	ts := httptest.NewServer(New(Config{Capture: capture}))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/api/landmarks"), nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	waitForSubscriber(t, capture, 1)
	capture.push([]detector.Hand{detector.OpenPalm()})

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg landmarksMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read error = %v", err)
	}
	if len(msg.Hands) != 1 || msg.Hands[0].Handedness != "Right" {
		t.Fatalf("message = %+v", msg)
	}
	if msg.Hands[0].Normalized[pose.Wrist] != (pose.Landmark{}) {
		t.Errorf("normalized wrist = %+v, want origin", msg.Hands[0].Normalized[pose.Wrist])
	}
}

func TestAPI_Recording(t *testing.T) {
	capture := &fakeCapture{}
	ts := httptest.NewServer(New(Config{Capture: capture}))
	defer ts.Close()
	client := ts.Client()

	resp, err := client.Post(ts.URL+"/api/recording", "application/json", bytes.NewBufferString(`{"action_name":"Wave"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !capture.isRecording() {
		t.Fatalf("POST status = %d, recording = %v", resp.StatusCode, capture.isRecording())
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/recording", nil)
	resp, _ = client.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	resp, _ = client.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second DELETE status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestAPI_SkeletonStream(t *testing.T) {
	capture := &fakeCapture{}
	ts := httptest.NewServer(New(Config{Capture: capture}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Fatalf("Content-Type = %s", ct)
	}

	waitForSubscriber(t, capture, 1)
	capture.push([]detector.Hand{detector.OpenPalm()})

	r := bufio.NewReader(resp.Body)
	boundary, err := r.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if boundary != "--frame\r\n" {
		t.Errorf("boundary = %q", boundary)
	}
	part, _ := r.ReadString('\n')
	if part != "Content-Type: image/jpeg\r\n" {
		t.Errorf("part header = %q", part)
	}
}
