package app

import (
	"errors"
	"log/slog"
	"time"

	"github.com/ayusman/handrelay/internal/detector"
	"github.com/ayusman/handrelay/internal/pose"
	"github.com/ayusman/handrelay/internal/recorder"
	"github.com/ayusman/handrelay/internal/relay"
	"github.com/ayusman/handrelay/internal/store"
)

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdStatus
)

type command struct {
	kind       commandKind
	actionName string
	reply      chan commandResult
}

type commandResult struct {
	saved  *SavedSession
	status recorder.Status
	info   *recorder.Info
	err    error
}

// runPipeline is the capture loop. Every tick it reads one frame, detects hands,
// records the first complete hand while recording and offers it to the relay. Control
// commands run between ticks, so frames are handled strictly in order.
func (a *App) runPipeline(fps int, stopCh, done chan struct{}, cmds chan command) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(max(fps, 1)))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			if a.recorder.Recording() {
				slog.Warn("capture stopped while recording, frames discarded", "frames", a.recorder.Len())
				a.recorder.Stop()
			}
			return
		case c := <-cmds:
			c.reply <- a.handle(c, fps)
		case <-ticker.C:
			a.processFrame()
		}
	}
}

func (a *App) processFrame() {
	frame, err := a.config.Camera.ReadFrame()
	if err != nil {
		a.readErrors.Add(1)
		slog.Debug("error reading frame", "error", err)
		return
	}
	a.frames.Add(1)

	if a.config.Detector == nil {
		frame.Close()
		return
	}

	hands, err := a.config.Detector.Detect(frame)
	frame.Close()
	if err != nil {
		a.detectErrors.Add(1)
		slog.Warn("error detecting hands", "error", err)
		return
	}
	if len(hands) == 0 {
		return
	}
	a.hands.Add(1)
	a.publish(hands)

	p, ok := detector.FirstPose(hands)
	if !ok {
		return
	}

	if a.recorder.Recording() {
		a.recorder.Append(p)
	}

	a.relayPose(p)
}

func (a *App) relayPose(p pose.Pose) {
	if a.config.Throttle == nil || !a.relayOn.Load() {
		return
	}

	sent, err := a.config.Throttle.Offer(p)
	switch {
	case err == nil:
		if sent {
			a.relayed.Add(1)
		}
	case errors.Is(err, relay.ErrTransport):
		if !a.config.OnTransportError(err) {
			a.relayOn.Store(false)
		}
	default:
		slog.Debug("pose not relayed", "error", err)
	}
}

func (a *App) handle(c command, fps int) commandResult {
	switch c.kind {
	case cmdStart:
		a.recorder.Start(c.actionName, a.recordFPS(fps))
		return commandResult{}

	case cmdStop:
		saved, err := a.saveRecording()
		return commandResult{saved: saved, err: err}

	case cmdStatus:
		status, info := a.recorder.Status()
		return commandResult{status: status, info: info}

	default:
		return commandResult{err: errors.New("unknown command")}
	}
}

// saveRecording writes the buffer and catalogs the file. A catalog failure is logged but
// does not fail the save; the next Sync picks the file up.
func (a *App) saveRecording() (*SavedSession, error) {
	if !a.recorder.Recording() {
		return nil, ErrNotRecording
	}
	if a.recorder.Len() == 0 {
		a.recorder.Stop()
		return nil, recorder.ErrEmpty
	}

	s := a.recorder.Session()
	path, err := a.recorder.SaveTo(a.config.RecordingsDir)
	if err != nil {
		// The recorder kept its buffer; report and let the caller retry.
		slog.Error("failed to save recording", "error", err)
		return nil, err
	}

	saved := &SavedSession{Path: path, Frames: s.Len()}
	if a.config.Store != nil {
		entry, err := a.config.Store.Sessions().Register(path, s)
		if err != nil {
			slog.Warn("failed to catalog recording", "path", path, "error", err)
		} else {
			saved.Entry = entry
		}
		if err := a.config.Store.Settings().Set(store.SettingLastSession, path); err != nil {
			slog.Warn("failed to remember last session", "error", err)
		}
	}

	a.lastSaved.Store(saved)
	return saved, nil
}
