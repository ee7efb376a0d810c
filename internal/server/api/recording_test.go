package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ayusman/handrelay/internal/app"
	"github.com/ayusman/handrelay/internal/recorder"
)

type fakeController struct {
	action  string
	started error
	stopped error
	saved   *app.SavedSession
	status  recorder.Status
}

func (f *fakeController) StartRecording(actionName string) error {
	if f.started != nil {
		return f.started
	}
	f.action = actionName
	f.status = recorder.StatusRecording
	return nil
}

func (f *fakeController) StopRecording() (*app.SavedSession, error) {
	if f.stopped != nil {
		return nil, f.stopped
	}
	f.status = recorder.StatusIdle
	return f.saved, nil
}

func (f *fakeController) RecordingStatus() (recorder.Status, *recorder.Info, error) {
	if f.status == recorder.StatusRecording {
		return f.status, &recorder.Info{ActionName: f.action}, nil
	}
	return recorder.StatusIdle, nil, nil
}

func TestRecordingHandler_StartStop(t *testing.T) {
	ctl := &fakeController{saved: &app.SavedSession{Path: "/tmp/Wave.json", Frames: 12}}
	handler := NewRecordingHandler(ctl)

	req := httptest.NewRequest(http.MethodPost, "/api/recording", strings.NewReader(`{"action_name":"Wave"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("POST expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var status recordingStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status.Status != "RECORDING" || status.Info == nil || status.Info.ActionName != "Wave" {
		t.Errorf("unexpected status %+v", status)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/recording", nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("DELETE expected status %d, got %d", http.StatusCreated, rec.Code)
	}
	var saved app.SavedSession
	if err := json.NewDecoder(rec.Body).Decode(&saved); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if saved.Path != "/tmp/Wave.json" || saved.Frames != 12 {
		t.Errorf("unexpected saved session %+v", saved)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recording", nil))
	if !strings.Contains(rec.Body.String(), `"IDLE"`) {
		t.Errorf("expected idle status, got %s", rec.Body.String())
	}
}

func TestRecordingHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		ctl    *fakeController
		method string
		body   string
		want   int
	}{
		{"invalid json", &fakeController{}, http.MethodPost, `{`, http.StatusBadRequest},
		{"missing action name", &fakeController{}, http.MethodPost, `{}`, http.StatusBadRequest},
		{"loop not running", &fakeController{started: app.ErrNotRunning}, http.MethodPost, `{"action_name":"x"}`, http.StatusServiceUnavailable},
		{"not recording", &fakeController{stopped: app.ErrNotRecording}, http.MethodDelete, "", http.StatusConflict},
		{"nothing recorded", &fakeController{stopped: recorder.ErrEmpty}, http.MethodDelete, "", http.StatusConflict},
		{"save failed", &fakeController{stopped: errString("disk full")}, http.MethodDelete, "", http.StatusInternalServerError},
		{"bad method", &fakeController{}, http.MethodPut, "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewRecordingHandler(tt.ctl)
			req := httptest.NewRequest(tt.method, "/api/recording", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

type errString string

func (e errString) Error() string { return string(e) }
