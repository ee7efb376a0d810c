package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/ayusman/handrelay/internal/relay"
)

// runMonitor prints what the firmware would extract from each line on the port.
func runMonitor(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)

	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	if cfg.Serial.Port == "" {
		return errors.New("monitor needs a serial port (-port or HANDRELAY_SERIAL_PORT)")
	}

	port, err := relay.OpenSerial(cfg.SerialPort())
	if err != nil {
		return err
	}
	defer port.Close()

	return relay.NewMonitor(port).Run(ctx, func(r relay.Reading) {
		fmt.Printf("x=%d y=%d z=%.4f\n", r.X, r.Y, r.Z)
	})
}

func runPorts() error {
	ports, err := relay.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}
