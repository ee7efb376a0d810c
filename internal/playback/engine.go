// Package playback replays recorded sessions to a rendering sink at the recorded cadence.
//
// An Engine moves through Idle → Loading → Playing → Finished or Aborted. Frames that
// failed validation at load time are skipped with a warning but still take up their
// pacing delay, so a corrupt frame never shifts the timing of the frames after it.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/handrelay/internal/pose"
	"github.com/ayusman/handrelay/internal/session"
)

// State is the playback state machine position.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StateFinished
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StateFinished:
		return "finished"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrNotLoaded is returned by Play when no session is loaded, including after a
	// playback has already ended.
	ErrNotLoaded = errors.New("no session loaded")
	// ErrBusy is returned when loading or playing while a playback is running.
	ErrBusy = errors.New("playback in progress")
)

// pausePoll is how often a paused engine re-checks the sink and context.
const pausePoll = 50 * time.Millisecond

// RenderFrame is everything a sink needs to draw one frame. Pose is already flipped into
// the rendering coordinate system.
type RenderFrame struct {
	// Index is the 1-based frame number.
	Index      int
	Total      int
	ActionName string
	Pose       pose.Pose
	Bones      []pose.Bone
	Palm       []int
}

// Sink is a rendering target.
type Sink interface {
	Render(f RenderFrame) error
	// Open reports whether the sink is still accepting frames. Once it returns false the
	// playback aborts at the next frame boundary.
	Open() bool
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Result summarises a finished or aborted playback.
type Result struct {
	State    State
	Rendered int
	Skipped  int
	Elapsed  time.Duration
}

// PlaybackSession owns everything one playback touches: the sink, the loaded session and
// the position within it.
type PlaybackSession struct {
	Sink    Sink
	Session *session.Session
	// Index is the 0-based slot of the next frame to play.
	Index int
}

// Remaining returns the number of frame slots not yet played.
func (p *PlaybackSession) Remaining() int {
	return p.Session.Len() - p.Index
}

// Option configures an Engine.
type Option func(*Engine)

// WithSleeper replaces the pacing delay implementation.
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) { e.sleep = s }
}

// WithLogger sets the logger used for skip warnings and state changes.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine plays one loaded session at a time to a sink.
type Engine struct {
	sink  Sink
	sleep Sleeper
	log   *slog.Logger
	now   func() time.Time

	mu      sync.Mutex
	state   State
	current *PlaybackSession
	paused  bool
	resume  chan struct{}
	stopped bool
}

// New creates an idle Engine that renders to sink.
func New(sink Sink, opts ...Option) *Engine {
	e := &Engine{
		sink:  sink,
		sleep: Sleep,
		log:   slog.Default(),
		now:   time.Now,
		state: StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Current returns the loaded playback, or nil.
func (e *Engine) Current() *PlaybackSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Load parses a session container from r. On failure the engine returns to Idle with
// nothing loaded and the error is a *session.FormatError or *session.IOError.
func (e *Engine) Load(r io.Reader) error {
	if err := e.beginLoad(); err != nil {
		return err
	}
	s, err := session.Load(r)
	return e.endLoad(s, err)
}

// LoadFile loads the session stored at path.
func (e *Engine) LoadFile(path string) error {
	if err := e.beginLoad(); err != nil {
		return err
	}
	s, err := session.LoadFile(path)
	return e.endLoad(s, err)
}

// LoadSession loads an already decoded session. Container defaults are applied to a
// copy, so a literal with no fps still paces at session.DefaultFPS.
func (e *Engine) LoadSession(s *session.Session) error {
	if s == nil {
		return ErrNotLoaded
	}
	if err := e.beginLoad(); err != nil {
		return err
	}
	c := *s
	c.ApplyDefaults()
	return e.endLoad(&c, nil)
}

func (e *Engine) beginLoad() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StatePlaying || e.state == StateLoading {
		return ErrBusy
	}
	e.state = StateLoading
	e.current = nil
	return nil
}

func (e *Engine) endLoad(s *session.Session, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateIdle
	if err != nil {
		return err
	}
	e.current = &PlaybackSession{Sink: e.sink, Session: s}
	e.paused = false
	e.stopped = false
	e.resume = nil
	return nil
}

// Play replays the loaded session, blocking until it finishes or aborts. Cancelling ctx,
// calling Stop or closing the sink aborts at the next frame boundary. The returned error
// is non-nil only when nothing was loaded or the sink failed to render.
func (e *Engine) Play(ctx context.Context) (Result, error) {
	e.mu.Lock()
	if e.state == StatePlaying {
		e.mu.Unlock()
		return Result{}, ErrBusy
	}
	ps := e.current
	if ps == nil || e.state != StateIdle {
		e.mu.Unlock()
		return Result{}, ErrNotLoaded
	}
	e.state = StatePlaying
	e.mu.Unlock()

	s := ps.Session
	res := Result{}
	start := e.now()
	interval := s.FrameInterval()

	e.log.Info("playback started", "action", s.ActionName, "frames", s.Len(), "fps", s.FPS)

	var renderErr error
	state := StateFinished
	for ps.Index < s.Len() {
		if !e.proceed(ctx, ps.Sink) {
			state = StateAborted
			break
		}

		idx := ps.Index
		frame := s.Frames[idx]
		if frame.Valid() {
			rf := RenderFrame{
				Index:      idx + 1,
				Total:      s.Len(),
				ActionName: s.ActionName,
				Pose:       frame.Pose.Flip(),
				Bones:      pose.Bones,
				Palm:       pose.PalmIndices,
			}
			if err := ps.Sink.Render(rf); err != nil {
				renderErr = fmt.Errorf("render frame %d: %w", idx+1, err)
				state = StateAborted
				break
			}
			res.Rendered++
		} else {
			reason := frame.Err
			if reason == nil {
				reason = session.ErrFrameShort
			}
			e.log.Warn("skipping frame", "frame", idx+1, "reason", reason)
			res.Skipped++
		}
		ps.Index++

		if err := e.sleep(ctx, interval); err != nil {
			state = StateAborted
			break
		}
	}

	res.State = state
	res.Elapsed = e.now().Sub(start)

	e.mu.Lock()
	e.state = state
	e.current = nil
	e.mu.Unlock()

	e.log.Info("playback ended", "state", state, "rendered", res.Rendered,
		"skipped", res.Skipped, "elapsed", res.Elapsed)
	return res, renderErr
}

// proceed is the frame-boundary check. It blocks while paused and reports whether the
// next frame may be played.
func (e *Engine) proceed(ctx context.Context, sink Sink) bool {
	for {
		if ctx.Err() != nil || !sink.Open() {
			return false
		}

		e.mu.Lock()
		stopped, paused, resume := e.stopped, e.paused, e.resume
		e.mu.Unlock()

		if stopped {
			return false
		}
		if !paused {
			return true
		}

		t := time.NewTimer(pausePoll)
		select {
		case <-ctx.Done():
		case <-resume:
		case <-t.C:
		}
		t.Stop()
	}
}

// Pause holds playback at the next frame boundary.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return
	}
	e.paused = true
	e.resume = make(chan struct{})
}

// Resume continues a paused playback.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.paused {
		return
	}
	e.paused = false
	close(e.resume)
}

// Paused reports whether playback is paused.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Stop aborts playback at the next frame boundary.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
}
