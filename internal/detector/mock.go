package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/handrelay/internal/pose"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results, either as a fixed answer or as a
// script consumed one frame at a time.
type MockDetector struct {
	mu     sync.Mutex
	hands  []Hand
	err    error
	script [][]Hand
	calls  int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Script queues per-frame answers. Each Detect call consumes one entry; once the script
// is exhausted Detect falls back to the hands set with SetHands.
func (m *MockDetector) Script(frames ...[]Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, frames...)
}

// Calls returns the number of Detect calls.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next scripted answer, or the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Hand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		return next, nil
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

func rightHand() (Hand, pose.Pose) {
	p := make(pose.Pose, pose.NumLandmarks)
	return Hand{Pose: p, Handedness: "Right", Score: 0.95}, p
}

// ThumbsUp returns a preset right hand with the thumb extended upward and the other
// fingers curled.
func ThumbsUp() Hand {
	hand, p := rightHand()

	// Wrist at origin
	p[pose.Wrist] = pose.Landmark{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended upward (pointing up, Y decreases going up)
	p[pose.ThumbCMC] = pose.Landmark{X: 0.55, Y: 0.75, Z: 0.0}
	p[pose.ThumbMCP] = pose.Landmark{X: 0.58, Y: 0.65, Z: 0.0}
	p[pose.ThumbIP] = pose.Landmark{X: 0.58, Y: 0.50, Z: 0.0}
	p[pose.ThumbTip] = pose.Landmark{X: 0.58, Y: 0.35, Z: 0.0}

	// Index finger curled (knuckles close together, tip near palm)
	p[pose.IndexMCP] = pose.Landmark{X: 0.55, Y: 0.70, Z: -0.02}
	p[pose.IndexPIP] = pose.Landmark{X: 0.55, Y: 0.68, Z: -0.05}
	p[pose.IndexDIP] = pose.Landmark{X: 0.52, Y: 0.70, Z: -0.04}
	p[pose.IndexTip] = pose.Landmark{X: 0.50, Y: 0.72, Z: -0.02}

	// Middle finger curled
	p[pose.MiddleMCP] = pose.Landmark{X: 0.50, Y: 0.68, Z: -0.02}
	p[pose.MiddlePIP] = pose.Landmark{X: 0.50, Y: 0.66, Z: -0.05}
	p[pose.MiddleDIP] = pose.Landmark{X: 0.47, Y: 0.68, Z: -0.04}
	p[pose.MiddleTip] = pose.Landmark{X: 0.45, Y: 0.70, Z: -0.02}

	// Ring finger curled
	p[pose.RingMCP] = pose.Landmark{X: 0.45, Y: 0.70, Z: -0.02}
	p[pose.RingPIP] = pose.Landmark{X: 0.45, Y: 0.68, Z: -0.05}
	p[pose.RingDIP] = pose.Landmark{X: 0.42, Y: 0.70, Z: -0.04}
	p[pose.RingTip] = pose.Landmark{X: 0.40, Y: 0.72, Z: -0.02}

	// Pinky finger curled
	p[pose.PinkyMCP] = pose.Landmark{X: 0.40, Y: 0.72, Z: -0.02}
	p[pose.PinkyPIP] = pose.Landmark{X: 0.40, Y: 0.70, Z: -0.05}
	p[pose.PinkyDIP] = pose.Landmark{X: 0.37, Y: 0.72, Z: -0.04}
	p[pose.PinkyTip] = pose.Landmark{X: 0.35, Y: 0.74, Z: -0.02}

	return hand
}

// OpenPalm returns a preset right hand with all fingers extended.
func OpenPalm() Hand {
	hand, p := rightHand()

	// Wrist at base
	p[pose.Wrist] = pose.Landmark{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended to the side
	p[pose.ThumbCMC] = pose.Landmark{X: 0.55, Y: 0.75, Z: 0.02}
	p[pose.ThumbMCP] = pose.Landmark{X: 0.62, Y: 0.70, Z: 0.03}
	p[pose.ThumbIP] = pose.Landmark{X: 0.68, Y: 0.65, Z: 0.03}
	p[pose.ThumbTip] = pose.Landmark{X: 0.73, Y: 0.60, Z: 0.03}

	// Index finger extended upward
	p[pose.IndexMCP] = pose.Landmark{X: 0.55, Y: 0.68, Z: 0.0}
	p[pose.IndexPIP] = pose.Landmark{X: 0.57, Y: 0.55, Z: 0.0}
	p[pose.IndexDIP] = pose.Landmark{X: 0.58, Y: 0.45, Z: 0.0}
	p[pose.IndexTip] = pose.Landmark{X: 0.58, Y: 0.35, Z: 0.0}

	// Middle finger extended upward (slightly longer)
	p[pose.MiddleMCP] = pose.Landmark{X: 0.50, Y: 0.66, Z: 0.0}
	p[pose.MiddlePIP] = pose.Landmark{X: 0.50, Y: 0.52, Z: 0.0}
	p[pose.MiddleDIP] = pose.Landmark{X: 0.50, Y: 0.40, Z: 0.0}
	p[pose.MiddleTip] = pose.Landmark{X: 0.50, Y: 0.28, Z: 0.0}

	// Ring finger extended upward
	p[pose.RingMCP] = pose.Landmark{X: 0.45, Y: 0.68, Z: 0.0}
	p[pose.RingPIP] = pose.Landmark{X: 0.43, Y: 0.55, Z: 0.0}
	p[pose.RingDIP] = pose.Landmark{X: 0.42, Y: 0.45, Z: 0.0}
	p[pose.RingTip] = pose.Landmark{X: 0.42, Y: 0.35, Z: 0.0}

	// Pinky finger extended upward
	p[pose.PinkyMCP] = pose.Landmark{X: 0.40, Y: 0.70, Z: 0.0}
	p[pose.PinkyPIP] = pose.Landmark{X: 0.37, Y: 0.60, Z: 0.0}
	p[pose.PinkyDIP] = pose.Landmark{X: 0.35, Y: 0.50, Z: 0.0}
	p[pose.PinkyTip] = pose.Landmark{X: 0.34, Y: 0.42, Z: 0.0}

	return hand
}
