// Package app runs the capture loop: camera frames go through the hand detector, the first
// detected hand is appended to the recorder while recording and relayed over serial.
package app

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ayusman/handrelay/internal/capture"
	"github.com/ayusman/handrelay/internal/detector"
	"github.com/ayusman/handrelay/internal/recorder"
	"github.com/ayusman/handrelay/internal/relay"
	"github.com/ayusman/handrelay/internal/store"
)

var (
	// ErrNotRunning is returned by control calls when the capture loop is not running.
	ErrNotRunning = errors.New("capture loop is not running")
	// ErrNoCamera is returned by Start when no camera is configured.
	ErrNoCamera = errors.New("no camera configured")
	// ErrNotRecording is returned by StopRecording when no recording is in progress.
	ErrNotRecording = errors.New("not recording")
)

// subscriberBuffer is how many hand sets a slow subscriber may lag behind before
// updates to it are dropped.
const subscriberBuffer = 8

// Config holds the collaborators of the capture loop.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector

	// Throttle relays poses over serial. Nil disables the relay.
	Throttle *relay.Throttle

	// Store catalogs saved sessions. Optional.
	Store *store.Store

	// RecordingsDir is where StopRecording saves session files.
	RecordingsDir string

	// FPS is the capture loop rate; zero uses the camera's rate. It is also the fps
	// written into recorded sessions.
	FPS int

	// DefaultFPS is written into recorded sessions when the loop rate is unknown.
	// Zero uses capture.DefaultFPS.
	DefaultFPS int

	// OnTransportError is called when the relay fails. It returns whether to keep
	// relaying. Nil logs the error and disables the relay.
	OnTransportError func(err error) bool
}

// Stats counts what the loop has done.
type Stats struct {
	Frames       uint64 `json:"frames"`
	ReadErrors   uint64 `json:"read_errors"`
	DetectErrors uint64 `json:"detect_errors"`
	Hands        uint64 `json:"hands"`
	Relayed      uint64 `json:"relayed"`
	RelayOn      bool   `json:"relay_on"`
}

// SavedSession describes a recording written by StopRecording.
type SavedSession struct {
	Path   string         `json:"path"`
	Frames int            `json:"frames"`
	Entry  *store.Session `json:"entry,omitempty"`
}

// App owns the capture loop. The recorder is only touched from the loop goroutine;
// other goroutines reach it through commands.
type App struct {
	config   Config
	recorder *recorder.Recorder

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
	cmds   chan command

	subMu sync.Mutex
	subs  map[int]chan []detector.Hand
	subID int

	frames       atomic.Uint64
	readErrors   atomic.Uint64
	detectErrors atomic.Uint64
	hands        atomic.Uint64
	relayed      atomic.Uint64
	relayOn      atomic.Bool

	lastSaved atomic.Pointer[SavedSession]
}

// New creates a new App with the given configuration.
func New(config Config) *App {
	if config.OnTransportError == nil {
		config.OnTransportError = func(err error) bool {
			slog.Error("serial relay failed, relay disabled", "error", err)
			return false
		}
	}

	a := &App{
		config:   config,
		recorder: recorder.New(),
		subs:     make(map[int]chan []detector.Hand),
	}
	a.relayOn.Store(config.Throttle != nil)
	return a
}

// Start opens the camera and starts the capture loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if a.config.Camera == nil {
		return ErrNoCamera
	}

	if err := a.config.Camera.Open(); err != nil {
		return err
	}

	fps := a.config.FPS
	if fps > 0 {
		a.config.Camera.SetFPS(fps)
	} else {
		fps = a.config.Camera.FPS()
	}

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	a.cmds = make(chan command)
	go a.runPipeline(fps, a.stopCh, a.done, a.cmds)

	slog.Info("capture loop started", "fps", fps, "relay", a.relayOn.Load())
	return nil
}

// Stop halts the capture loop and releases the camera and detector. A recording still
// in progress is discarded; call StopRecording first to keep it.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		close(a.stopCh)
		<-a.done
		a.stopCh = nil
		a.done = nil
		a.cmds = nil
	}

	if a.config.Camera != nil {
		if err := a.config.Camera.Close(); err != nil {
			slog.Warn("error closing camera", "error", err)
		}
	}

	if a.config.Detector != nil {
		if err := a.config.Detector.Close(); err != nil {
			slog.Warn("error closing detector", "error", err)
		}
	}

	a.subMu.Lock()
	for id, ch := range a.subs {
		close(ch)
		delete(a.subs, id)
	}
	a.subMu.Unlock()

	slog.Info("capture loop stopped")
}

// Running reports whether the capture loop is running.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopCh != nil
}

// StartRecording begins buffering detected poses under actionName. A recording already
// in progress is discarded.
func (a *App) StartRecording(actionName string) error {
	_, err := a.do(command{kind: cmdStart, actionName: actionName})
	return err
}

// StopRecording saves the buffered poses into the recordings directory and catalogs the
// file. On failure the buffer is kept and the recording continues, so the call can be
// retried.
func (a *App) StopRecording() (*SavedSession, error) {
	res, err := a.do(command{kind: cmdStop})
	if err != nil {
		return nil, err
	}
	return res.saved, nil
}

// RecordingStatus reports the recorder state.
func (a *App) RecordingStatus() (recorder.Status, *recorder.Info, error) {
	res, err := a.do(command{kind: cmdStatus})
	if err != nil {
		return recorder.StatusIdle, nil, err
	}
	return res.status, res.info, nil
}

// LastSaved returns the most recent session saved by StopRecording, or nil.
func (a *App) LastSaved() *SavedSession {
	return a.lastSaved.Load()
}

// Stats returns a snapshot of the loop counters.
func (a *App) Stats() Stats {
	return Stats{
		Frames:       a.frames.Load(),
		ReadErrors:   a.readErrors.Load(),
		DetectErrors: a.detectErrors.Load(),
		Hands:        a.hands.Load(),
		Relayed:      a.relayed.Load(),
		RelayOn:      a.relayOn.Load(),
	}
}

// Subscribe returns a channel receiving every non-empty set of detected hands, and a
// function that cancels the subscription. Slow subscribers miss updates rather than
// stalling the loop.
func (a *App) Subscribe() (<-chan []detector.Hand, func()) {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	id := a.subID
	a.subID++
	ch := make(chan []detector.Hand, subscriberBuffer)
	a.subs[id] = ch

	return ch, func() {
		a.subMu.Lock()
		defer a.subMu.Unlock()
		if c, ok := a.subs[id]; ok {
			close(c)
			delete(a.subs, id)
		}
	}
}

func (a *App) publish(hands []detector.Hand) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- hands:
		default:
		}
	}
}

// do hands a command to the loop and waits for its result.
func (a *App) do(c command) (commandResult, error) {
	a.mu.Lock()
	cmds, done := a.cmds, a.done
	a.mu.Unlock()

	if cmds == nil {
		return commandResult{}, ErrNotRunning
	}

	c.reply = make(chan commandResult, 1)
	select {
	case cmds <- c:
	case <-done:
		return commandResult{}, ErrNotRunning
	}

	select {
	case res := <-c.reply:
		return res, res.err
	case <-done:
		return commandResult{}, ErrNotRunning
	}
}

func (a *App) recordFPS(fps int) float64 {
	switch {
	case fps > 0:
		return float64(fps)
	case a.config.DefaultFPS > 0:
		return float64(a.config.DefaultFPS)
	default:
		return float64(capture.DefaultFPS)
	}
}
