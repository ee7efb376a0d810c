package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"

	"github.com/ayusman/handrelay/internal/app"
	"github.com/ayusman/handrelay/internal/capture"
	"github.com/ayusman/handrelay/internal/detector"
	"github.com/ayusman/handrelay/internal/recorder"
	"github.com/ayusman/handrelay/internal/relay"
	"github.com/ayusman/handrelay/internal/server"
	"github.com/ayusman/handrelay/internal/store"
	"github.com/ayusman/handrelay/internal/tray"
)

func runCapture(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("capture", flag.ContinueOnError)
	record := fs.String("record", "", "start recording under this action name immediately")
	withTray := fs.Bool("tray", false, "show the menu-bar control")
	serve := fs.Bool("serve", false, "also expose the HTTP API")

	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	det, err := detector.NewMediaPipeDetector(cfg.DetectorSettings())
	if err != nil {
		return err
	}

	// The serial port is opened once and owned by the relay for the whole run.
	var throttle *relay.Throttle
	if cfg.Serial.Port != "" {
		port, err := relay.OpenSerial(cfg.SerialPort())
		if err != nil {
			det.Close()
			return err
		}
		sender := relay.NewSender(port)
		defer sender.Close()
		throttle = relay.NewThrottle(cfg.Encoder(), sender, cfg.Serial.Interval.Duration)
		slog.Info("serial relay enabled", "port", cfg.Serial.Port, "baud", cfg.Serial.Baud,
			"landmark", cfg.Serial.Landmark, "interval", throttle.Interval())
	}

	a := app.New(app.Config{
		Camera:        capture.NewCamera(cfg.CaptureConfig()),
		Detector:      det,
		Throttle:      throttle,
		Store:         st,
		RecordingsDir: cfg.RecordingsDir(),
		FPS:           cfg.Camera.FPS,
		DefaultFPS:    cfg.Recording.DefaultFPS,
	})
	if err := a.Start(); err != nil {
		det.Close()
		return err
	}
	defer a.Stop()
	defer saveOnExit(a)

	if *record != "" {
		if err := a.StartRecording(*record); err != nil {
			return err
		}
		slog.Info("recording", "action", *record)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if *serve {
		srv := server.New(server.Config{
			StaticDir: findWebDir(cfg.DataDir),
			Store:     st,
			Capture:   a,
		})
		go func() {
			if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
				slog.Error("http server failed", "error", err)
				cancel()
			}
		}()
	}

	if *withTray {
		runTray(ctx, cancel, a, st, cfg.Recording.ActionName)
		return nil
	}

	<-ctx.Done()
	return nil
}

// runTray blocks in the menu-bar loop until quit is chosen or ctx is done.
func runTray(ctx context.Context, cancel context.CancelFunc, a *app.App, st *store.Store, actionName string) {
	t := tray.New()

	t.OnToggle(func(recording bool) error {
		if recording {
			return a.StartRecording(actionName)
		}
		saved, err := a.StopRecording()
		switch {
		case errors.Is(err, recorder.ErrEmpty):
			// Nothing was captured; the recording is over all the same.
			slog.Warn("recording had no frames, nothing saved")
			return nil
		case err != nil:
			return err
		}
		t.SetLastSession(saved.Path)
		return nil
	})
	t.OnState(func() tray.State {
		var st tray.State
		if status, _, err := a.RecordingStatus(); err == nil {
			st.Recording = status == recorder.StatusRecording
		}
		if saved := a.LastSaved(); saved != nil {
			st.LastSession = saved.Path
		}
		return st
	})
	t.OnQuit(cancel)

	if last, err := st.Settings().Get(store.SettingLastSession); err == nil {
		t.SetLastSession(last)
	}

	t.Refresh()

	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	t.Run()
}

// saveOnExit keeps a recording that is still running when capture ends.
func saveOnExit(a *app.App) {
	status, _, err := a.RecordingStatus()
	if err != nil || status != recorder.StatusRecording {
		return
	}
	saved, err := a.StopRecording()
	if err != nil {
		slog.Error("recording lost on exit", "error", err)
		return
	}
	slog.Info("recording saved", "path", saved.Path, "frames", saved.Frames)
}
