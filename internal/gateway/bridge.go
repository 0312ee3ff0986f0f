package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bitlair/doorduino-gateway/internal/infrastructure/config"
	"github.com/bitlair/doorduino-gateway/internal/infrastructure/mqtt"
)

// BrokerConn is one live broker session. *mqtt.Client satisfies it.
type BrokerConn interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Done() <-chan struct{}
	Close() error
}

var _ BrokerConn = (*mqtt.Client)(nil)

// Dialer opens a new broker session.
type Dialer func() (BrokerConn, error)

// MQTTDialer returns a Dialer backed by mqtt.Connect.
func MQTTDialer(cfg config.MQTTConfig, statusTopic string, logger mqtt.Logger) Dialer {
	return func() (BrokerConn, error) {
		client, err := mqtt.Connect(cfg, statusTopic)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			client.SetLogger(logger)
		}
		return client, nil
	}
}

// Observer receives inbound space state messages.
type Observer interface {
	Observe(ctx context.Context, topic, value string)
}

// Logger is the logging surface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// BridgeConfig holds the topic wiring of a Bridge.
type BridgeConfig struct {
	// SpaceStateTopics are subscribed and forwarded to the Observer.
	SpaceStateTopics []string

	// SyncTriggerTopic, when set, requests a button sync on any message.
	SyncTriggerTopic string

	QoS    byte
	Policy ReconnectPolicy
}

// Bridge owns the broker session: it dials, subscribes, forwards inbound
// messages, and reconnects according to its ReconnectPolicy.
//
// Run returns ErrBrokerUnavailable once the policy is exhausted; it does
// not loop forever on its own.
type Bridge struct {
	cfg      BridgeConfig
	dial     Dialer
	observer Observer
	trigger  func()
	logger   Logger
	sleep    func(ctx context.Context, d time.Duration) error

	// stableAfter is how long a session must last before the reconnect
	// delays start over.
	stableAfter time.Duration

	mu   sync.RWMutex
	conn BrokerConn

	sessions atomic.Uint64
	received atomic.Uint64
}

// NewBridge creates a Bridge. observer and trigger may be nil.
func NewBridge(cfg BridgeConfig, dial Dialer, observer Observer, trigger func()) *Bridge {
	stableAfter := cfg.Policy.Initial
	if stableAfter < time.Second {
		stableAfter = time.Second
	}
	return &Bridge{
		cfg:      cfg,
		dial:     dial,
		observer: observer,
		trigger:  trigger,
		logger:   noopLogger{},
		sleep:    sleepCtx,

		stableAfter: stableAfter,
	}
}

// SetLogger sets the logger.
func (b *Bridge) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	b.logger = logger
}

// Run keeps a broker session up until ctx is cancelled or reconnection
// gives up.
//
// Every redial, whether after a failed dial or a lost session, waits for
// the policy's next delay. The delay sequence starts over only after a
// session has stayed up for stableAfter; sessions that drop sooner count
// as failed attempts.
func (b *Bridge) Run(ctx context.Context) error {
	bo := b.cfg.Policy.BackOff()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := b.dial()
		if err == nil {
			b.logger.Info("connected to broker", "attempt", attempt)

			var stable bool
			stable, err = b.serve(ctx, conn)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if stable {
				bo.Reset()
				attempt = 0
			}
			b.logger.Warn("broker session lost", "error", err, "stable", stable)
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			b.logger.Error("giving up on broker", "attempts", attempt, "error", err)
			return fmt.Errorf("%w: %d attempts: %w", ErrBrokerUnavailable, attempt, err)
		}

		b.logger.Warn("reconnecting to broker",
			"attempt", attempt+1,
			"retry_in", delay,
			"error", err,
		)
		if err := b.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// serve subscribes on conn and blocks until the session ends or ctx is
// cancelled. The session is always closed on return. stable reports
// whether the session stayed up past stableAfter once subscribed.
func (b *Bridge) serve(ctx context.Context, conn BrokerConn) (stable bool, err error) {
	defer func() {
		b.setConn(nil)
		_ = conn.Close()
	}()

	if err := b.subscribe(ctx, conn); err != nil {
		return false, err
	}

	b.setConn(conn)
	b.sessions.Add(1)
	up := time.Now()

	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-conn.Done():
		err = errors.New("session closed")
		if errConn, ok := conn.(interface{ Err() error }); ok && errConn.Err() != nil {
			err = errConn.Err()
		}
	}
	return time.Since(up) >= b.stableAfter, err
}

func (b *Bridge) subscribe(ctx context.Context, conn BrokerConn) error {
	if b.observer != nil {
		for _, topic := range b.cfg.SpaceStateTopics {
			err := conn.Subscribe(topic, b.cfg.QoS, func(topic string, payload []byte) error {
				b.received.Add(1)
				b.observer.Observe(ctx, topic, string(payload))
				return nil
			})
			if err != nil {
				return fmt.Errorf("subscribing to %s: %w", topic, err)
			}
		}
	}

	if b.trigger != nil && b.cfg.SyncTriggerTopic != "" {
		err := conn.Subscribe(b.cfg.SyncTriggerTopic, b.cfg.QoS, func(topic string, _ []byte) error {
			b.received.Add(1)
			b.logger.Info("button sync requested", "topic", topic)
			b.trigger()
			return nil
		})
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", b.cfg.SyncTriggerTopic, err)
		}
	}

	return nil
}

func (b *Bridge) setConn(conn BrokerConn) {
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
}

// Connected reports whether a broker session is currently up.
func (b *Bridge) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.conn != nil
}

// Publish sends value on topic over the current session.
func (b *Bridge) Publish(_ context.Context, topic, value string, retained bool) error {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}
	return conn.Publish(topic, []byte(value), b.cfg.QoS, retained)
}

// BridgeStats is a snapshot of bridge counters.
type BridgeStats struct {
	Sessions  uint64
	Received  uint64
	Connected bool
}

// Stats returns current counters.
func (b *Bridge) Stats() BridgeStats {
	return BridgeStats{
		Sessions:  b.sessions.Load(),
		Received:  b.received.Load(),
		Connected: b.Connected(),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
