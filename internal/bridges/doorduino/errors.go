package doorduino

import "errors"

// Sentinel errors for the serial link.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTransport indicates the serial device could not be opened.
	// The monitor retries after a fixed delay.
	ErrTransport = errors.New("doorduino: cannot open serial device")

	// ErrTimeout indicates no complete line arrived within the read timeout.
	// It is not a fault; the caller simply polls again.
	ErrTimeout = errors.New("doorduino: read timeout")

	// ErrDisconnected indicates the serial link failed mid-session.
	// The monitor closes the port and runs the full reopen sequence.
	ErrDisconnected = errors.New("doorduino: serial link disconnected")

	// ErrNotConnected is returned by Device.Send while no link is attached.
	ErrNotConnected = errors.New("doorduino: not connected")
)
