package main

import (
	"context"
	"flag"

	"github.com/ayusman/handrelay/internal/server"
)

// runServe exposes the catalog and remote playback without touching the camera.
func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)

	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := server.New(server.Config{
		StaticDir: findWebDir(cfg.DataDir),
		Store:     st,
	})
	return srv.Run(ctx, cfg.Server.Addr)
}
