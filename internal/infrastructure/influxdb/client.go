package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/bitlair/doorduino-gateway/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second

	// Door events are rare; small batches flushed often keep the dashboard
	// current without holding a doorbell press for a minute.
	defaultBatchSize     = 20
	defaultFlushInterval = 5 * time.Second

	// A lost batch is a few doorbell presses. Retry briefly and let it go
	// rather than buffer telemetry through a long outage.
	maxRetries       = 3
	retryBufferLimit = 1000
	requestTimeout   = 10 // seconds
)

// Stats holds telemetry counters.
type Stats struct {
	// Queued counts points handed to the write buffer.
	Queued uint64

	// FailedBatches counts batches the server rejected or never received.
	FailedBatches uint64
}

// Client records door telemetry in InfluxDB.
//
// Telemetry is best-effort: points are batched and written asynchronously,
// and a write failure never blocks or fails the door path. Failures are
// counted and passed to the SetOnError callback wrapped in ErrWriteFailed.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	closed atomic.Bool

	queued atomic.Uint64
	failed atomic.Uint64

	mu      sync.RWMutex
	onError func(err error)
}

// Connect pings the server and returns a client writing to cfg.Bucket.
//
// Parameters:
//   - ctx: Bounds the initial ping
//   - cfg: InfluxDB configuration
//
// Returns:
//   - *Client: Client ready for writes
//   - error: ErrDisabled when telemetry is off, ErrConnectionFailed when
//     the server is unreachable or unhealthy
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: %s reports unhealthy", ErrConnectionFailed, cfg.URL)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	go c.watchErrors(c.writeAPI.Errors())

	return c, nil
}

// writeOptions tunes the write buffer for a low-rate event stream.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batchSize := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batchSize = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(batchSize).
		SetFlushInterval(uint(flush.Milliseconds())).
		SetPrecision(time.Millisecond).
		SetMaxRetries(maxRetries).
		SetRetryBufferLimit(retryBufferLimit).
		SetHTTPRequestTimeout(requestTimeout)
	if cfg.Gateway != "" {
		opts.AddDefaultTag("gateway", cfg.Gateway)
	}
	return opts
}

func (c *Client) watchErrors(errs <-chan error) {
	for err := range errs {
		c.failed.Add(1)

		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()

		if callback != nil {
			callback(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		}
	}
}

// SetOnError sets the callback for failed batch writes. It runs on the
// client's error goroutine.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

func (c *Client) write(point *write.Point) {
	if c.writeAPI == nil || c.closed.Load() {
		return
	}
	c.queued.Add(1)
	c.writeAPI.WritePoint(point)
}

// Flush sends buffered points now. No-op after Close.
func (c *Client) Flush() {
	if c.writeAPI == nil || c.closed.Load() {
		return
	}
	c.writeAPI.Flush()
}

// Stats returns telemetry counters.
func (c *Client) Stats() Stats {
	return Stats{
		Queued:        c.queued.Load(),
		FailedBatches: c.failed.Load(),
	}
}

// Close flushes buffered points and releases the client. Points written
// after Close are discarded.
func (c *Client) Close() error {
	if c.client == nil || c.closed.Swap(true) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
