package doorduino

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// maxLineLength flushes a line that never sees a terminator, so a
	// noisy line cannot grow the buffer without bound.
	maxLineLength = 256

	// readChunkSize is the size of a single read from the port.
	readChunkSize = 64
)

// Port is the subset of serial.Port used by Conn. Tests substitute a fake.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// LineConn is a line-oriented link to the controller.
type LineConn interface {
	ReadLine(timeout time.Duration) (string, error)
	WriteLine(b []byte) error
	Close() error
}

// Ensure Conn implements LineConn.
var _ LineConn = (*Conn)(nil)

// Conn is an open serial link. It holds the device exclusively until Close.
//
// Thread Safety:
//   - ReadLine must be called from one goroutine at a time.
//   - WriteLine may be called concurrently with ReadLine; writers are
//     serialised by Device.
type Conn struct {
	port Port

	buf   []byte
	chunk [readChunkSize]byte

	closeOnce sync.Once
	closeErr  error
}

// OpenSerial opens the controller's serial device at 8N1.
//
// The firmware resets when the port is opened; callers must wait for the
// open settle delay before sending commands.
//
// Returns:
//   - *Conn: open link
//   - error: ErrTransport if the device cannot be opened
func OpenSerial(path string, baud int) (*Conn, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, path, err)
	}

	return NewConn(port), nil
}

// NewConn wraps an already open port.
func NewConn(port Port) *Conn {
	return &Conn{port: port}
}

// ReadLine returns the next complete line, without "\r" or "\n".
//
// Bytes of an incomplete line are kept for the next call. A read that
// returns nothing before the port's timeout elapsed means the device went
// away (the serial driver reports hangup as an empty read).
//
// Returns:
//   - string: the line, possibly empty
//   - error: ErrTimeout if no full line arrived in time, ErrDisconnected on link failure
func (c *Conn) ReadLine(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)

	for {
		if line, ok := c.nextLine(); ok {
			return line, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", ErrTimeout
		}
		if err := c.port.SetReadTimeout(remaining); err != nil {
			return "", fmt.Errorf("%w: setting read timeout: %w", ErrDisconnected, err)
		}

		start := time.Now()
		n, err := c.port.Read(c.chunk[:])
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrDisconnected, err)
		}
		if n == 0 {
			if time.Since(start) < remaining/2 {
				return "", fmt.Errorf("%w: %w", ErrDisconnected, io.EOF)
			}
			continue
		}

		for _, b := range c.chunk[:n] {
			if b != '\r' {
				c.buf = append(c.buf, b)
			}
		}
	}
}

// nextLine pops one line from the buffer if available.
func (c *Conn) nextLine() (string, bool) {
	if i := bytes.IndexByte(c.buf, '\n'); i >= 0 {
		line := string(c.buf[:i])
		c.buf = c.buf[i+1:]
		return line, true
	}
	if len(c.buf) >= maxLineLength {
		line := string(c.buf[:maxLineLength])
		c.buf = c.buf[maxLineLength:]
		return line, true
	}
	return "", false
}

// WriteLine writes b as-is. Callers include the terminator.
func (c *Conn) WriteLine(b []byte) error {
	if _, err := c.port.Write(b); err != nil {
		return fmt.Errorf("%w: %w", ErrDisconnected, err)
	}
	return nil
}

// Close releases the device. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.port.Close()
	})
	return c.closeErr
}
