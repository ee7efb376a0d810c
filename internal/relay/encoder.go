// Package relay turns hand poses into the newline-delimited serial wire protocol consumed
// by the microcontroller, and writes them to the serial transport at a bounded rate.
//
// Wire contract: one ASCII line per pose, "<x_int>,<y_int>,<z_float>\n". The firmware
// reads up to the newline, splits on the first three commas and parses int, int, float.
// Fields past the third are ignored; a line with fewer than three fields is dropped.
package relay

import (
	"errors"
	"fmt"

	"github.com/ayusman/handrelay/internal/pose"
)

// Encoder defaults match the tracker's 640x480 capture frame.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
	zPrecision    = 4
)

// ErrNoLandmark is returned when the pose does not contain the landmark being relayed.
var ErrNoLandmark = errors.New("pose has no landmark at relay index")

// Encoder converts a pose into one wire line. X and Y are scaled to pixel coordinates of a
// Width x Height frame and truncated to integers; Z is sent as a float with four decimals.
type Encoder struct {
	Index  int
	Width  int
	Height int
}

// DefaultEncoder relays the wrist in a 640x480 frame.
func DefaultEncoder() Encoder {
	return Encoder{
		Index:  pose.Wrist,
		Width:  DefaultWidth,
		Height: DefaultHeight,
	}
}

// Encode returns the wire line for p, including the terminating newline.
// It is a pure function of the encoder settings and the pose.
func (e Encoder) Encode(p pose.Pose) (string, error) {
	if e.Index < 0 || e.Index >= len(p) {
		return "", fmt.Errorf("%w: index %d, pose has %d landmarks", ErrNoLandmark, e.Index, len(p))
	}

	l := p[e.Index]
	x := int(l.X * float64(e.Width))
	y := int(l.Y * float64(e.Height))

	return fmt.Sprintf("%d,%d,%.*f\n", x, y, zPrecision, l.Z), nil
}
