package relay

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Serial link defaults. The baud rate is fixed by the firmware.
const (
	DefaultBaud = 9600
	// DefaultSettle is how long to wait after opening for the board to finish the reset
	// that opening the port triggers.
	DefaultSettle = 2 * time.Second
	// ReadTimeout is the inter-character timeout used when reading lines back.
	ReadTimeout = 20 * time.Millisecond
)

// SerialConfig describes the port to open.
type SerialConfig struct {
	Port   string
	Baud   int
	Settle time.Duration
}

// OpenSerial opens the serial port described by cfg, 8N1, and waits for the board to
// settle. The returned port satisfies Transport and io.Reader.
func OpenSerial(cfg SerialConfig) (serial.Port, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("no serial port configured")
	}
	baud := cfg.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, &TransportError{Op: "open " + cfg.Port, Err: err}
	}

	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		port.Close()
		return nil, &TransportError{Op: "configure " + cfg.Port, Err: err}
	}

	if cfg.Settle > 0 {
		time.Sleep(cfg.Settle)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, &TransportError{Op: "reset " + cfg.Port, Err: err}
	}

	return port, nil
}

// ListPorts returns the names of the serial ports present on the system.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
