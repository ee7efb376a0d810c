// Package session implements the recorded-session container: the canonical in-memory
// Session type, a loader that accepts every historical file shape, and the writer.
package session

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/ayusman/handrelay/internal/pose"
)

// Container defaults applied when a field is absent or unusable.
const (
	DefaultFPS        = 30.0
	DefaultActionName = "Recorded Action"
)

// MaxFrameInterval caps the pacing delay for sessions whose fps is too small to give a
// representable 1/fps.
const MaxFrameInterval = time.Hour

var (
	// ErrFormat is matched by every FormatError.
	ErrFormat = errors.New("unrecognized session format")
	// ErrIO is matched by every IOError.
	ErrIO = errors.New("session i/o failed")

	// Per-frame rejection reasons. A frame carrying one of these is skipped, never fatal.
	ErrFrameMalformed  = errors.New("frame is not a landmark collection")
	ErrFrameEmpty      = errors.New("frame has no landmarks")
	ErrFrameShort      = errors.New("frame has fewer than 21 landmarks")
	ErrLandmarkMissing = errors.New("landmark is missing a coordinate")
)

// FormatError reports a container whose top-level shape cannot be understood.
// It is terminal for a load: no partial session is returned.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session format: %s: %v", e.Reason, e.Err)
	}
	return "session format: " + e.Reason
}

func (e *FormatError) Unwrap() error        { return e.Err }
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// IOError reports a failure reading or writing a session file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s session %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error        { return e.Err }
func (e *IOError) Is(target error) bool { return target == ErrIO }

// Shape identifies which historical container layout a file used.
type Shape int

const (
	// ShapeGrid is a 2-D array indexed by frame then landmark. The recorder writes this.
	ShapeGrid Shape = iota
	// ShapeEntries is a sequence of named per-frame entries.
	ShapeEntries
)

func (s Shape) String() string {
	switch s {
	case ShapeGrid:
		return "grid"
	case ShapeEntries:
		return "entries"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// Frame is one recorded slot. Frames that failed validation keep their slot so that
// playback timing is preserved; Err says why the frame will be skipped.
type Frame struct {
	Pose pose.Pose
	Err  error
}

// Valid reports whether the frame can be rendered.
func (f Frame) Valid() bool {
	return f.Err == nil && f.Pose.Complete()
}

// Session is a named, fps-tagged recording of a pose sequence. A loaded Session is
// never mutated.
type Session struct {
	ActionName string
	FPS        float64
	Frames     []Frame
	// Shape is the layout the session was loaded from. Saved sessions always use ShapeGrid.
	Shape Shape
}

// New builds a session from raw poses, applying the container defaults.
// Poses are copied; short poses are kept and flagged the same way Load flags them.
func New(actionName string, fps float64, poses []pose.Pose) *Session {
	s := &Session{
		ActionName: actionName,
		FPS:        fps,
		Frames:     make([]Frame, len(poses)),
	}
	s.ApplyDefaults()
	for i, p := range poses {
		s.Frames[i] = Frame{Pose: p.Clone(), Err: checkLength(len(p))}
	}
	return s
}

// ApplyDefaults fills in the container defaults for an absent action name or a
// non-positive fps.
func (s *Session) ApplyDefaults() {
	if s.ActionName == "" {
		s.ActionName = DefaultActionName
	}
	if !(s.FPS > 0) {
		s.FPS = DefaultFPS
	}
}

// Len returns the number of frame slots.
func (s *Session) Len() int {
	return len(s.Frames)
}

// ValidFrames returns how many frames will render during playback.
func (s *Session) ValidFrames() int {
	n := 0
	for _, f := range s.Frames {
		if f.Valid() {
			n++
		}
	}
	return n
}

// FrameInterval is the pacing delay between frames, exactly 1/fps. A non-positive fps
// paces at DefaultFPS and the delay never exceeds MaxFrameInterval.
func (s *Session) FrameInterval() time.Duration {
	fps := s.FPS
	if !(fps > 0) {
		fps = DefaultFPS
	}
	d := float64(time.Second) / fps
	if math.IsInf(d, 0) || math.IsNaN(d) || d > float64(MaxFrameInterval) {
		return MaxFrameInterval
	}
	return time.Duration(d)
}

// Duration is the nominal playback length.
func (s *Session) Duration() time.Duration {
	return time.Duration(len(s.Frames)) * s.FrameInterval()
}

// Poses returns the pose of every frame slot, including rejected ones.
func (s *Session) Poses() []pose.Pose {
	out := make([]pose.Pose, len(s.Frames))
	for i, f := range s.Frames {
		out[i] = f.Pose
	}
	return out
}

func checkLength(n int) error {
	switch {
	case n == 0:
		return ErrFrameEmpty
	case n < pose.NumLandmarks:
		return fmt.Errorf("%w: got %d", ErrFrameShort, n)
	default:
		return nil
	}
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileName returns the conventional file name for a recording of actionName made at t:
// <action>_<YYYYmmdd_HHMMSS>.json.
func FileName(actionName string, t time.Time) string {
	name := unsafeNameChars.ReplaceAllString(actionName, "_")
	if name == "" || name == "_" {
		name = "recording"
	}
	return fmt.Sprintf("%s_%s.json", name, t.Format("20060102_150405"))
}
