package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ayusman/handrelay/internal/playback"
	"github.com/ayusman/handrelay/internal/store"
)

func runPlay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	headless := fs.Bool("headless", false, "log frames instead of opening a window")

	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("play needs exactly one session file or catalog ID")
	}

	path, err := resolveSession(cfg.DBPath(), fs.Arg(0))
	if err != nil {
		return err
	}

	var sink playback.Sink
	if *headless {
		s := playback.NewLogSink(nil)
		defer s.Close()
		sink = s
	} else {
		w := playback.NewWindowSink("handrelay", playback.DefaultWindowWidth, playback.DefaultWindowHeight)
		defer w.Close()
		sink = w
	}

	engine := playback.New(sink)
	if err := engine.LoadFile(path); err != nil {
		return err
	}

	res, err := engine.Play(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d frames rendered, %d skipped in %s\n",
		res.State, res.Rendered, res.Skipped, res.Elapsed.Round(time.Millisecond))
	return nil
}

// resolveSession accepts a path to a session file or the ID of a cataloged session.
func resolveSession(dbPath, arg string) (string, error) {
	if _, err := os.Stat(arg); err == nil {
		return arg, nil
	}
	if _, err := os.Stat(dbPath); err != nil {
		return arg, nil
	}

	st, err := store.New(dbPath)
	if err != nil {
		return "", err
	}
	defer st.Close()

	entry, err := st.Sessions().GetByID(arg)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Let the loader report the missing file.
			return arg, nil
		}
		return "", err
	}
	slog.Debug("playing cataloged session", "id", entry.ID, "path", entry.Path)
	return entry.Path, nil
}
