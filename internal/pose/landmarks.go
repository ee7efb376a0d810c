// Package pose provides the hand pose data model shared by recording, relay and playback.
package pose

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Landmark is one normalized camera-space keypoint. X and Y are typically in [0,1];
// Z is a relative depth whose sign and scale depend on the detector.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility,omitempty"`
}

// Pose is an ordered landmark snapshot for one instant. Position N always denotes the
// same anatomical joint; a complete pose has NumLandmarks entries.
type Pose []Landmark

// Complete reports whether p has at least NumLandmarks entries.
func (p Pose) Complete() bool {
	return len(p) >= NumLandmarks
}

// Clone returns a copy of p that does not share its backing array.
func (p Pose) Clone() Pose {
	if p == nil {
		return nil
	}
	out := make(Pose, len(p))
	copy(out, p)
	return out
}

// Flip maps a raw landmark into the rendering coordinate system by inverting the
// vertical axis and the depth sign: (x, 1-y, -z). Flip(Flip(l)) == l.
func Flip(l Landmark) Landmark {
	return Landmark{
		X:          l.X,
		Y:          1 - l.Y,
		Z:          -l.Z,
		Visibility: l.Visibility,
	}
}

// Flip returns a new pose with Flip applied to every landmark.
func (p Pose) Flip() Pose {
	out := make(Pose, len(p))
	for i, l := range p {
		out[i] = Flip(l)
	}
	return out
}

// DepthRange returns the minimum and maximum Z across the pose.
// An empty pose yields (0, 0).
func (p Pose) DepthRange() (minZ, maxZ float64) {
	if len(p) == 0 {
		return 0, 0
	}
	minZ, maxZ = math.Inf(1), math.Inf(-1)
	for _, l := range p {
		minZ = math.Min(minZ, l.Z)
		maxZ = math.Max(maxZ, l.Z)
	}
	return minZ, maxZ
}

// distance3D calculates the Euclidean distance between two landmarks.
func distance3D(a, b Landmark) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Normalize returns the pose relative to the wrist, scaled so that the distance from
// wrist to middle finger MCP is 1.0. Incomplete poses are returned as a plain copy.
func (p Pose) Normalize() Pose {
	if !p.Complete() {
		return p.Clone()
	}

	wrist := p[Wrist]
	normalized := make(Pose, len(p))
	for i, l := range p {
		normalized[i] = Landmark{
			X:          l.X - wrist.X,
			Y:          l.Y - wrist.Y,
			Z:          l.Z - wrist.Z,
			Visibility: l.Visibility,
		}
	}

	scale := distance3D(Landmark{}, normalized[MiddleMCP])
	// Avoid division by zero
	if scale < 1e-10 {
		return normalized
	}

	for i := range normalized {
		normalized[i].X /= scale
		normalized[i].Y /= scale
		normalized[i].Z /= scale
	}
	return normalized
}
