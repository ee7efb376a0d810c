package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ayusman/handrelay/internal/config"
	"github.com/ayusman/handrelay/internal/store"
)

const usage = `handrelay - hand tracking recorder, player and serial relay

Usage:
  handrelay capture [-record NAME] [-tray] [-serve] [flags]
  handrelay play [-headless] FILE|ID [flags]
  handrelay sessions [rm ID] [flags]
  handrelay monitor [flags]
  handrelay serve [flags]
  handrelay ports

Run "handrelay <command> -h" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "capture":
		err = runCapture(ctx, args)
	case "play":
		err = runPlay(ctx, args)
	case "sessions":
		err = runSessions(args)
	case "monitor":
		err = runMonitor(ctx, args)
	case "serve":
		err = runServe(ctx, args)
	case "ports":
		err = runPorts()
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, flag.ErrHelp) {
		slog.Error(cmd+" failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig parses the flags of one command and installs the logger.
func loadConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	cfg, err := config.Parse(fs, args, os.Getenv)
	if err != nil {
		return nil, err
	}

	level, _ := cfg.LogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return cfg, nil
}

// openStore opens the catalog and syncs it with the recordings directory.
func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	res, err := st.Sessions().Sync(cfg.RecordingsDir())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("sync recordings: %w", err)
	}
	if res.Added > 0 || res.Removed > 0 || res.Rejected > 0 {
		slog.Info("catalog synced", "dir", cfg.RecordingsDir(),
			"added", res.Added, "removed", res.Removed, "rejected", res.Rejected)
	}
	return st, nil
}

// findWebDir searches for a web UI directory in common locations.
// It checks: "web", "../web", "../../web", and <data_dir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
