package mqtt

import (
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bitlair/doorduino-gateway/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the doorduino gateway.
//
// A Client represents exactly one broker session. It does not reconnect on
// its own: when the connection drops, Done is closed and the owner is
// expected to discard the client and dial a new one. This keeps the retry
// policy (attempt counting, give-up) in the bridge loop where it can be
// supervised.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client      pahomqtt.Client
	options     *pahomqtt.ClientOptions
	cfg         config.MQTTConfig
	statusTopic string

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	// done is closed once when the session ends, for any reason.
	done     chan struct{}
	doneOnce sync.Once
	lostErr  error

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked by the paho router goroutine, in order per topic.
// They should not block for extended periods.
type MessageHandler func(topic string, payload []byte) error

// Connect establishes a single session with the MQTT broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Configures Last Will and Testament on statusTopic (if set)
//  3. Attempts the connection once, with timeout
//  4. Publishes the retained "online" status
//
// Parameters:
//   - cfg: MQTT configuration
//   - statusTopic: Availability topic, or "" to disable LWT and status messages
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed if the broker could not be reached
func Connect(cfg config.MQTTConfig, statusTopic string) (*Client, error) {
	opts := buildClientOptions(cfg)
	if statusTopic != "" {
		configureLWT(opts, statusTopic, byte(cfg.QoS))
	}

	c := &Client{
		cfg:         cfg,
		options:     opts,
		statusTopic: statusTopic,
		done:        make(chan struct{}),
	}

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.publishStatus(StatusOnline)

	return c, nil
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.finish(err)
}

// finish records why the session ended and closes Done.
func (c *Client) finish(err error) {
	c.doneOnce.Do(func() {
		c.lostErr = err
		close(c.done)
	})
}

// publishStatus publishes a retained availability message, best-effort.
func (c *Client) publishStatus(status string) {
	if c.statusTopic == "" {
		return
	}
	token := c.client.Publish(c.statusTopic, byte(c.cfg.QoS), true, status)
	token.WaitTimeout(defaultPublishTimeout)
}

// Close gracefully disconnects from the MQTT broker.
//
// It publishes the retained "offline" status (the broker only sends the
// LWT for unexpected disconnects), then disconnects with a quiesce period.
//
// Returns:
//   - error: always nil; a closed connection is not an error
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		c.publishStatus(StatusOffline)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.finish(ErrClosed)

	return nil
}

// Done returns a channel that is closed when the session ends,
// either through connection loss or Close.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the session ended, or nil while it is alive.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.lostErr
	default:
		return nil
	}
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetLogger sets a logger for handler errors and panics.
// If not set, errors in handlers are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(handler, msg.Topic(), msg.Payload())
	}
}

// dispatch runs handler for one message, recovering panics.
func (c *Client) dispatch(handler MessageHandler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT handler panic recovered",
					"topic", topic,
					"panic", r,
				)
			}
		}
	}()

	if err := handler(topic, payload); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT handler returned error",
				"topic", topic,
				"error", err,
			)
		}
	}
}
