package main

import (
	"context"
	"strings"
	"time"

	"github.com/bitlair/doorduino-gateway/internal/bridges/doorduino"
	"github.com/bitlair/doorduino-gateway/internal/buttons"
	"github.com/bitlair/doorduino-gateway/internal/gateway"
	"github.com/bitlair/doorduino-gateway/internal/infrastructure/influxdb"
	"github.com/bitlair/doorduino-gateway/internal/infrastructure/logging"
	"github.com/bitlair/doorduino-gateway/internal/process"
	"github.com/bitlair/doorduino-gateway/internal/spacestate"
)

// healthReporter periodically logs the counters of every component and,
// when telemetry is on, writes them as a gateway_stats point.
type healthReporter struct {
	interval time.Duration

	monitor    *doorduino.Monitor
	aggregator *spacestate.Aggregator
	bridge     *gateway.Bridge
	router     *gateway.EventRouter
	sup        *process.Supervisor
	syncer     *buttons.Syncer  // nil when button sync is off
	influx     *influxdb.Client // nil when telemetry is off

	log *logging.Logger
	now func() time.Time
}

func (h *healthReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.report()
		}
	}
}

func (h *healthReporter) report() {
	s := h.sample()
	serial := h.monitor.Stats()

	h.log.Info("gateway health",
		"serial_connected", s.SerialConnected,
		"lines_read", s.LinesRead,
		"unrecognized", serial.Unrecognized,
		"events_dropped", serial.EventsDropped,
		"last_line_at", serial.LastActivity,
		"serial_disconnects", s.Disconnects,
		"broker_connected", s.BrokerConnected,
		"broker_sessions", s.BrokerSessions,
		"received", s.Received,
		"published", s.Published,
		"publish_failed", s.Failed,
		"publish_dropped", s.Dropped,
		"state_pushes", s.StatePushes,
		"push_failures", s.PushFailures,
		"loops", h.loopSummary(),
	)

	if h.syncer != nil {
		last := h.syncer.Last()
		switch {
		case last.Finished.IsZero():
			h.log.Info("no button sync finished yet")
		case last.Err != nil:
			h.log.Warn("last button sync failed",
				"cycle_id", last.Result.CycleID,
				"age", s.LastSyncAge.Round(time.Second),
				"error", last.Err,
			)
		default:
			h.log.Info("last button sync",
				"cycle_id", last.Result.CycleID,
				"age", s.LastSyncAge.Round(time.Second),
				"added", len(last.Result.Added),
				"removed", len(last.Result.Removed),
			)
		}
	}

	if h.influx != nil {
		h.influx.WriteGatewayStats(s)
		if ts := h.influx.Stats(); ts.FailedBatches > 0 {
			h.log.Warn("telemetry batches lost", "failed", ts.FailedBatches, "queued", ts.Queued)
		}
	}
}

func (h *healthReporter) sample() influxdb.GatewaySample {
	serial := h.monitor.Stats()
	mqtt := h.bridge.Stats()
	out := h.router.Stats()
	pushes := h.aggregator.Stats()

	s := influxdb.GatewaySample{
		SerialConnected: serial.Connected,
		LinesRead:       serial.LinesRx,
		Disconnects:     serial.Disconnects,
		OpenFailures:    serial.OpenFailures,
		CommandsSent:    serial.CommandsTx,
		BrokerConnected: mqtt.Connected,
		BrokerSessions:  mqtt.Sessions,
		Received:        mqtt.Received,
		Published:       out.Published,
		Failed:          out.Failed,
		Dropped:         out.Dropped,
		StatePushes:     pushes.Pushes,
		PushFailures:    pushes.Failures,
		LastSyncAge:     -1,
	}
	for _, l := range h.sup.Stats() {
		s.LoopRestarts += uint64(l.RestartCount) //nolint:gosec // never negative
	}
	if h.syncer != nil {
		if last := h.syncer.Last(); !last.Finished.IsZero() {
			s.LastSyncAge = h.now().Sub(last.Finished)
		}
	}
	return s
}

// loopSummary renders loop states as "serial=running mqtt=restarting".
func (h *healthReporter) loopSummary() string {
	var b strings.Builder
	for i, l := range h.sup.Stats() {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(l.Name)
		b.WriteByte('=')
		b.WriteString(string(l.Status))
	}
	return b.String()
}
