package gps

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"go.bug.st/serial"
)

var (
	// ErrAlreadyOpen is returned by Open on a device that is already open.
	ErrAlreadyOpen = errors.New("gps: device already open")
	// ErrClosed is returned by Open on a device that has been closed.
	// A closed device cannot be reopened; create a new one.
	ErrClosed = errors.New("gps: device closed")
)

// ConnectionError reports a failure to open the serial port.
type ConnectionError struct {
	PortPath string
	BaudRate int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("gps: failed to open %s at %d baud: %v", e.PortPath, e.BaudRate, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// DecodeError reports a line that could not be decoded into a sentence.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("gps: cannot decode %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// HandlerError reports a subscriber that returned an error or panicked.
type HandlerError struct {
	Index    int    // Registration order, from 0
	DataType string // Sentence type being delivered
	Err      error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("gps: handler %d failed on %s: %v", e.Index, e.DataType, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// isPortGone reports whether a read error means the port can no longer be
// read from, as opposed to a one-off failure.
func isPortGone(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) ||
		errors.Is(err, net.ErrClosed) {
		return true
	}
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortClosed, serial.PortNotFound, serial.InvalidSerialPort:
			return true
		}
	}
	return false
}
