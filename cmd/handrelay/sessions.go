package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
)

func runSessions(args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)

	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	switch {
	case fs.NArg() == 0:
	case fs.NArg() == 2 && fs.Arg(0) == "rm":
		id := fs.Arg(1)
		entry, err := st.Sessions().GetByID(id)
		if err != nil {
			return err
		}
		if err := os.Remove(entry.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := st.Sessions().Delete(id); err != nil {
			return err
		}
		fmt.Printf("removed %s (%s)\n", id, entry.Path)
		return nil
	default:
		return errors.New("usage: handrelay sessions [rm ID]")
	}

	entries, err := st.Sessions().List()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tACTION\tFPS\tFRAMES\tVALID\tCREATED\tPATH")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%d\t%d\t%s\t%s\n",
			e.ID, e.ActionName, e.FPS, e.FrameCount, e.ValidFrames,
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Path)
	}
	return tw.Flush()
}
