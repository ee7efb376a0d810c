package playback

import (
	"log/slog"
	"sync/atomic"

	"github.com/ayusman/handrelay/internal/pose"
)

// LogSink writes a one-line summary of every frame to a logger. It is used for headless
// replay where no display is available.
type LogSink struct {
	log    *slog.Logger
	closed atomic.Bool
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(l *slog.Logger) *LogSink {
	if l == nil {
		l = slog.Default()
	}
	return &LogSink{log: l}
}

// Render logs the frame number and the flipped wrist position.
func (s *LogSink) Render(f RenderFrame) error {
	w := f.Pose[pose.Wrist]
	s.log.Info("frame",
		"action", f.ActionName,
		"frame", f.Index,
		"total", f.Total,
		"wrist_x", w.X,
		"wrist_y", w.Y,
		"wrist_z", w.Z,
	)
	return nil
}

// Open reports whether Close has not been called.
func (s *LogSink) Open() bool {
	return !s.closed.Load()
}

// Close stops the sink; a running playback aborts at the next frame.
func (s *LogSink) Close() {
	s.closed.Store(true)
}
