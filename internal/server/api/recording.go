package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/handrelay/internal/app"
	"github.com/ayusman/handrelay/internal/recorder"
)

// RecordingController is the part of the capture App the recording endpoint drives.
type RecordingController interface {
	StartRecording(actionName string) error
	StopRecording() (*app.SavedSession, error)
	RecordingStatus() (recorder.Status, *recorder.Info, error)
}

// RecordingHandler starts and stops recordings in the capture loop.
type RecordingHandler struct {
	ctl RecordingController
}

// NewRecordingHandler creates a new RecordingHandler.
func NewRecordingHandler(ctl RecordingController) *RecordingHandler {
	return &RecordingHandler{ctl: ctl}
}

type startRecordingRequest struct {
	ActionName string `json:"action_name"`
}

type recordingStatusResponse struct {
	Status string         `json:"status"`
	Info   *recorder.Info `json:"info,omitempty"`
}

// ServeHTTP handles GET, POST and DELETE on /api/recording.
func (h *RecordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.status(w)
	case http.MethodPost:
		h.start(w, r)
	case http.MethodDelete:
		h.stop(w)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *RecordingHandler) status(w http.ResponseWriter) {
	status, info, err := h.ctl.RecordingStatus()
	if err != nil {
		writeControlError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordingStatusResponse{Status: string(status), Info: info})
}

func (h *RecordingHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startRecordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.ActionName == "" {
		writeError(w, http.StatusBadRequest, "action_name is required")
		return
	}

	if err := h.ctl.StartRecording(req.ActionName); err != nil {
		writeControlError(w, err)
		return
	}
	h.status(w)
}

func (h *RecordingHandler) stop(w http.ResponseWriter) {
	saved, err := h.ctl.StopRecording()
	if err != nil {
		writeControlError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func writeControlError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrNotRunning):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, app.ErrNotRecording), errors.Is(err, recorder.ErrEmpty):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
