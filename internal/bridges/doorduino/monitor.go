package doorduino

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bitlair/doorduino-gateway/internal/infrastructure/config"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Opener opens the serial link. OpenSerial in production, a fake in tests.
type Opener func(path string, baud int) (LineConn, error)

// EventHandler receives every decoded event, on the monitor goroutine.
// Handlers must not block; long work belongs in its own goroutine.
type EventHandler func(ctx context.Context, ev Event)

// MonitorStats holds operational statistics.
type MonitorStats struct {
	LinesRx       uint64
	Unrecognized  uint64
	OpenFailures  uint64
	Disconnects   uint64
	LastActivity  time.Time
	Connected     bool
	CommandsTx    uint64
	EventsDropped uint64
}

// Monitor owns the serial link: it opens the device, waits for the
// firmware to boot, attaches the link to the Device, and reads lines
// until the link fails, then starts over.
type Monitor struct {
	cfg    config.SerialConfig
	device *Device
	open   Opener

	mu        sync.RWMutex
	handlers  []EventHandler
	onConnect []func(ctx context.Context)

	logger Logger

	linesRx      atomic.Uint64
	unrecognized atomic.Uint64
	openFailures atomic.Uint64
	disconnects  atomic.Uint64
	lastActivity atomic.Int64
}

// NewMonitor creates a monitor for the configured device.
func NewMonitor(cfg config.SerialConfig, device *Device) *Monitor {
	return &Monitor{
		cfg:    cfg,
		device: device,
		open: func(path string, baud int) (LineConn, error) {
			return OpenSerial(path, baud)
		},
		logger: noopLogger{},
	}
}

// SetOpener replaces the function used to open the link.
func (m *Monitor) SetOpener(open Opener) {
	m.open = open
}

// SetLogger sets the logger for the monitor.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// OnEvent registers a handler for decoded events.
func (m *Monitor) OnEvent(h EventHandler) {
	m.mu.Lock()
	m.handlers = append(m.handlers, h)
	m.mu.Unlock()
}

// OnConnect registers a hook run each time a link becomes usable, after
// the open settle delay. Hooks run on the monitor goroutine.
func (m *Monitor) OnConnect(hook func(ctx context.Context)) {
	m.mu.Lock()
	m.onConnect = append(m.onConnect, hook)
	m.mu.Unlock()
}

// Run opens the device and dispatches events until ctx is cancelled.
//
// Open failures are retried after ReopenDelay. A disconnect closes the
// port and repeats the whole open sequence, settle delay included.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		conn, err := m.open(m.cfg.Device, m.cfg.Baud)
		if err != nil {
			m.openFailures.Add(1)
			m.logger.Warn("serial open failed", "device", m.cfg.Device, "error", err)
			if err := sleep(ctx, m.cfg.ReopenDelay); err != nil {
				return err
			}
			continue
		}

		m.logger.Info("serial device opened", "device", m.cfg.Device, "settle", m.cfg.OpenSettle)
		if err := sleep(ctx, m.cfg.OpenSettle); err != nil {
			conn.Close()
			return err
		}

		m.device.Attach(conn)
		m.runConnectHooks(ctx)

		err = m.readLoop(ctx, conn)

		m.device.Detach()
		conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		m.disconnects.Add(1)
		m.logger.Warn("serial link lost, reopening", "device", m.cfg.Device, "error", err)
		if err := sleep(ctx, m.cfg.ReopenDelay); err != nil {
			return err
		}
	}
}

// Exec opens the device once, waits for the firmware to boot, and runs fn
// with the link attached and lines being dispatched. The link is closed
// when fn returns. Unlike Run, an open failure is returned, not retried.
//
// Exec is for one-shot tools; do not call it while Run owns the device.
func (m *Monitor) Exec(ctx context.Context, fn func(ctx context.Context, d *Device) error) error {
	conn, err := m.open(m.cfg.Device, m.cfg.Baud)
	if err != nil {
		m.openFailures.Add(1)
		return fmt.Errorf("opening %s: %w", m.cfg.Device, err)
	}
	defer conn.Close()

	m.logger.Debug("serial device opened", "device", m.cfg.Device, "settle", m.cfg.OpenSettle)
	if err := sleep(ctx, m.cfg.OpenSettle); err != nil {
		return err
	}

	m.device.Attach(conn)
	defer m.device.Detach()

	readCtx, stop := context.WithCancel(ctx)
	readDone := make(chan error, 1)
	go func() { readDone <- m.readLoop(readCtx, conn) }()

	err = fn(ctx, m.device)

	stop()
	if readErr := <-readDone; err == nil && ctx.Err() == nil && !errors.Is(readErr, context.Canceled) {
		err = fmt.Errorf("reading %s: %w", m.cfg.Device, readErr)
	}
	return err
}

// readLoop reads and dispatches lines until the link fails or ctx ends.
func (m *Monitor) readLoop(ctx context.Context, conn LineConn) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := conn.ReadLine(m.cfg.ReadTimeout)
		if errors.Is(err, ErrTimeout) {
			continue
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		m.linesRx.Add(1)
		m.lastActivity.Store(time.Now().Unix())

		ev := Decode(line)
		switch ev.Kind {
		case EventUnrecognized:
			m.unrecognized.Add(1)
			m.logger.Debug("unrecognized line", "line", ev.Raw)
		case EventDeviceError:
			m.logger.Warn("controller reported error", "line", ev.Raw)
		default:
			m.logger.Debug("device event", "event", ev.Kind.String(), "button", ev.ButtonID)
		}

		m.dispatch(ctx, ev)
	}
}

// dispatch runs every handler, then feeds subscribers.
func (m *Monitor) dispatch(ctx context.Context, ev Event) {
	m.mu.RLock()
	handlers := m.handlers
	m.mu.RUnlock()

	for _, h := range handlers {
		m.callHandler(ctx, h, ev)
	}
	m.device.publish(ev)
}

func (m *Monitor) callHandler(ctx context.Context, h EventHandler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("event handler panic recovered", "event", ev.Kind.String(), "panic", r)
		}
	}()
	h(ctx, ev)
}

func (m *Monitor) runConnectHooks(ctx context.Context) {
	m.mu.RLock()
	hooks := m.onConnect
	m.mu.RUnlock()

	for _, hook := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("connect hook panic recovered", "panic", r)
				}
			}()
			hook(ctx)
		}()
	}
}

// Stats returns current statistics.
func (m *Monitor) Stats() MonitorStats {
	var last time.Time
	if ts := m.lastActivity.Load(); ts > 0 {
		last = time.Unix(ts, 0)
	}
	return MonitorStats{
		LinesRx:       m.linesRx.Load(),
		Unrecognized:  m.unrecognized.Load(),
		OpenFailures:  m.openFailures.Load(),
		Disconnects:   m.disconnects.Load(),
		LastActivity:  last,
		Connected:     m.device.Connected(),
		CommandsTx:    m.device.CommandsSent(),
		EventsDropped: m.device.EventsDropped(),
	}
}
