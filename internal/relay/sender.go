package relay

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrTransport is matched by every TransportError.
var ErrTransport = errors.New("serial transport failed")

// ErrBadLine is returned for lines that would violate the wire framing.
var ErrBadLine = errors.New("line must be non-empty and end with exactly one newline")

// TransportError reports a failed write or flush on the serial transport. It is never
// retried automatically; the capture loop decides whether to reconnect or abort.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("serial %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error        { return e.Err }
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Transport is an exclusively-owned, line-oriented byte sink such as a serial port.
type Transport interface {
	io.Writer
	// Drain blocks until everything written has been transmitted.
	Drain() error
	Close() error
}

// Sender writes complete wire lines to a Transport.
type Sender struct {
	transport Transport
}

// NewSender creates a Sender that owns t.
func NewSender(t Transport) *Sender {
	return &Sender{transport: t}
}

// Send writes one line in a single write and drains the transport so the newline reaches
// the remote reader promptly. Lines are never batched.
func (s *Sender) Send(line string) error {
	if len(line) < 2 || !strings.HasSuffix(line, "\n") || strings.Count(line, "\n") != 1 {
		return ErrBadLine
	}

	n, err := s.transport.Write([]byte(line))
	if err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	if n != len(line) {
		return &TransportError{Op: "write", Err: io.ErrShortWrite}
	}

	if err := s.transport.Drain(); err != nil {
		return &TransportError{Op: "drain", Err: err}
	}
	return nil
}

// Close releases the transport.
func (s *Sender) Close() error {
	return s.transport.Close()
}
