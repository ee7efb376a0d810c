// Package recorder accumulates poses produced during a capture run into a session and
// persists it.
package recorder

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ayusman/handrelay/internal/pose"
	"github.com/ayusman/handrelay/internal/session"
)

// ErrEmpty is returned when saving a recording that captured no frames.
var ErrEmpty = errors.New("no frames recorded")

// maxNameAttempts bounds the numbered variants SaveTo tries when names collide.
const maxNameAttempts = 1000

// Status represents the current state of the recorder.
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusRecording Status = "RECORDING"
)

// Info describes the recording in progress.
type Info struct {
	ActionName string    `json:"action_name"`
	FPS        float64   `json:"fps"`
	Frames     int       `json:"frames"`
	StartedAt  time.Time `json:"started_at"`
}

// Recorder buffers poses in arrival order. It is owned by a single capture loop and is
// not safe for concurrent use.
type Recorder struct {
	recording  bool
	actionName string
	fps        float64
	startedAt  time.Time
	frames     []pose.Pose
	now        func() time.Time
}

// New creates an idle Recorder.
func New() *Recorder {
	return &Recorder{now: time.Now}
}

// Start begins a new recording. Calling Start while a recording is in progress discards
// the previous unsaved buffer.
func (r *Recorder) Start(actionName string, fps float64) {
	if r.recording && len(r.frames) > 0 {
		slog.Warn("discarding unsaved recording",
			"action", r.actionName,
			"frames", len(r.frames),
		)
	}

	r.recording = true
	r.actionName = actionName
	r.fps = fps
	r.startedAt = r.now()
	r.frames = make([]pose.Pose, 0, 256)
}

// Append adds a pose to the buffer. Poses of any length are accepted; validation happens
// when the session is loaded. Append is ignored while idle.
func (r *Recorder) Append(p pose.Pose) {
	if !r.recording {
		return
	}
	r.frames = append(r.frames, p.Clone())
}

// Recording reports whether a recording is in progress.
func (r *Recorder) Recording() bool {
	return r.recording
}

// Len returns the number of buffered frames.
func (r *Recorder) Len() int {
	return len(r.frames)
}

// Status returns the recorder state and, while recording, the current session info.
func (r *Recorder) Status() (Status, *Info) {
	if !r.recording {
		return StatusIdle, nil
	}
	return StatusRecording, &Info{
		ActionName: r.actionName,
		FPS:        r.fps,
		Frames:     len(r.frames),
		StartedAt:  r.startedAt,
	}
}

// Session returns the buffered recording as a session without ending it.
func (r *Recorder) Session() *session.Session {
	return session.New(r.actionName, r.fps, r.frames)
}

// Save writes the buffered recording to path and returns the recorder to idle.
// On failure the buffer is kept so the caller may retry.
func (r *Recorder) Save(path string) error {
	return r.save(path, session.SaveFile)
}

func (r *Recorder) save(path string, write func(string, *session.Session) error) error {
	if len(r.frames) == 0 {
		return ErrEmpty
	}

	if err := write(path, r.Session()); err != nil {
		return fmt.Errorf("save recording %q: %w", r.actionName, err)
	}

	slog.Info("recording saved",
		"action", r.actionName,
		"frames", len(r.frames),
		"path", path,
	)
	r.reset()
	return nil
}

// SaveTo saves the recording into dir under its conventional file name and returns the
// path written. An existing file is never replaced: when the name is taken, _2, _3 and
// so on are appended before the extension.
func (r *Recorder) SaveTo(dir string) (string, error) {
	base := session.FileName(r.actionName, r.startedAt)
	for n := 1; n <= maxNameAttempts; n++ {
		path := filepath.Join(dir, numberedName(base, n))
		err := r.save(path, session.SaveNewFile)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		return path, nil
	}
	return "", fmt.Errorf("save recording %q: no free file name for %s in %s", r.actionName, base, dir)
}

func numberedName(name string, n int) string {
	if n == 1 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
}

// Stop ends the recording and drops the buffer without saving.
func (r *Recorder) Stop() {
	r.reset()
}

func (r *Recorder) reset() {
	r.recording = false
	r.frames = nil
}
