package pose

import "slices"

// Bone is an edge between two anatomically adjacent landmarks.
type Bone [2]int

// Bones is the full 21-edge hand connectivity table: the five finger chains plus the
// palm edges between neighbouring knuckles.
var Bones = []Bone{
	{Wrist, ThumbCMC}, {ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{Wrist, IndexMCP}, {IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{IndexMCP, MiddleMCP}, {MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{MiddleMCP, RingMCP}, {RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{RingMCP, PinkyMCP}, {PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
	{Wrist, PinkyMCP},
}

// FingerBones is the 20-edge subset that connects each finger chain to the wrist,
// without the knuckle-to-knuckle palm edges.
var FingerBones = []Bone{
	{Wrist, ThumbCMC}, {ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{Wrist, IndexMCP}, {IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{Wrist, MiddleMCP}, {MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{Wrist, RingMCP}, {RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{Wrist, PinkyMCP}, {PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
}

// PalmIndices are the six base joints spanning the palm polygon.
var PalmIndices = []int{Wrist, ThumbCMC, IndexMCP, MiddleMCP, RingMCP, PinkyMCP}

// FingertipIndices are the tips of the thumb and four fingers.
var FingertipIndices = []int{ThumbTip, IndexTip, MiddleTip, RingTip, PinkyTip}

// Role classifies a joint for drawing.
type Role int

const (
	RoleJoint Role = iota
	RoleWrist
	RoleThumbTip
	RoleFingertip
)

// RoleOf returns the drawing role of landmark index i.
func RoleOf(i int) Role {
	switch {
	case i == Wrist:
		return RoleWrist
	case i == ThumbTip:
		return RoleThumbTip
	case slices.Contains(FingertipIndices, i):
		return RoleFingertip
	default:
		return RoleJoint
	}
}
