package relay

import (
	"context"
	"errors"
	"io"
)

// maxLine bounds a single line so a peer that never sends a newline cannot grow the
// buffer without limit.
const maxLine = 256

// Monitor reads wire lines back from a transport the same way the firmware does: a line
// ends at a newline or when a read returns no data (the inter-character timeout expired)
// while a partial line is pending. Unparseable lines are dropped silently.
type Monitor struct {
	r io.Reader
}

// NewMonitor creates a Monitor reading from r.
func NewMonitor(r io.Reader) *Monitor {
	return &Monitor{r: r}
}

// Run reads until ctx is done or the reader returns io.EOF, calling fn for every line
// that parses. It returns nil on EOF or cancellation.
func (m *Monitor) Run(ctx context.Context, fn func(Reading)) error {
	buf := make([]byte, 64)
	line := make([]byte, 0, maxLine)
	// overflow is set while discarding the rest of a line longer than maxLine.
	overflow := false

	flush := func() {
		if overflow {
			overflow = false
			line = line[:0]
			return
		}
		if len(line) == 0 {
			return
		}
		if r, ok := ParseLine(string(line)); ok {
			fn(r)
		}
		line = line[:0]
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := m.r.Read(buf)
		if n == 0 && err == nil {
			// Read timed out with nothing new: the pending text is a complete line.
			flush()
			continue
		}

		for _, b := range buf[:n] {
			if b == '\n' {
				flush()
				continue
			}
			if overflow {
				continue
			}
			if len(line) == maxLine {
				overflow = true
				line = line[:0]
				continue
			}
			line = append(line, b)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				flush()
				return nil
			}
			return &TransportError{Op: "read", Err: err}
		}
	}
}
