package server

import (
	"fmt"
	"net/http"

	"gocv.io/x/gocv"

	"github.com/ayusman/handrelay/internal/detector"
	"github.com/ayusman/handrelay/internal/playback"
	"github.com/ayusman/handrelay/internal/pose"
)

// StreamHandler serves an MJPEG preview of the detected hand skeletons. The capture
// loop owns the camera, so the preview is drawn from detections rather than raw frames.
type StreamHandler struct {
	source Capture
	width  int
	height int
}

// NewStreamHandler creates a new StreamHandler fed by source.
func NewStreamHandler(source Capture) *StreamHandler {
	return &StreamHandler{
		source: source,
		width:  playback.DefaultWindowWidth,
		height: playback.DefaultWindowHeight,
	}
}

// ServeHTTP streams one JPEG part per detection until the client goes away or the
// capture loop stops.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hands, cancel := h.source.Subscribe()
	defer cancel()

	canvas := gocv.NewMatWithSize(h.height, h.width, gocv.MatTypeCV8UC3)
	defer canvas.Close()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	for {
		var hs []detector.Hand
		select {
		case <-r.Context().Done():
			return
		case got, ok := <-hands:
			if !ok {
				return
			}
			hs = got
		}

		canvas.SetTo(gocv.NewScalar(0, 0, 0, 0))
		for _, hand := range hs {
			if !hand.Pose.Complete() {
				continue
			}
			// Detections use image coordinates; Draw expects the flipped frame.
			playback.Draw(&canvas, playback.RenderFrame{
				ActionName: hand.Handedness,
				Pose:       hand.Pose.Flip(),
				Bones:      pose.FingerBones,
				Palm:       pose.PalmIndices,
			})
		}

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, canvas)
		if err != nil {
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", buf.Len())
		_, werr := w.Write(buf.GetBytes())
		fmt.Fprintf(w, "\r\n")
		buf.Close()
		if werr != nil {
			return
		}

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
