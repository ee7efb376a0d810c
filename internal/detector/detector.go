// Package detector adapts an external hand-landmark model to the pose data model.
package detector

import (
	"strconv"

	"gocv.io/x/gocv"

	"github.com/ayusman/handrelay/internal/pose"
)

// Hand is one detected hand.
type Hand struct {
	Pose       pose.Pose `json:"landmarks"`
	Handedness string    `json:"handedness"` // "Left" or "Right"
	Score      float64   `json:"score"`
}

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hands.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]Hand, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 1).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns the settings the tracker has always run with: a single hand at
// 0.7 detection and tracking confidence.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.7,
		MinTrackingConf: 0.7,
	}
}

// args renders the config as command-line flags for the landmark service.
func (c Config) args() []string {
	return []string{
		"--max-hands", strconv.Itoa(c.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(c.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(c.MinTrackingConf, 'f', -1, 64),
	}
}

// FirstPose returns the pose of the first complete hand, if any.
func FirstPose(hands []Hand) (pose.Pose, bool) {
	for _, h := range hands {
		if h.Pose.Complete() {
			return h.Pose, true
		}
	}
	return nil, false
}
