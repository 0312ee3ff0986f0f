package influxdb

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/bitlair/doorduino-gateway/internal/infrastructure/config"
)

var testTime = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

func lineProtocol(p *write.Point) string {
	return write.PointToLineProtocol(p, time.Second)
}

func TestDoorEventPoint(t *testing.T) {
	line := lineProtocol(doorEventPoint("doorbell", testTime))

	for _, want := range []string{"door_event,event=doorbell", "count=1i"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestSyncResultPoint(t *testing.T) {
	tests := []struct {
		name   string
		sample SyncSample
		want   []string
	}{
		{
			name: "applied",
			sample: SyncSample{
				CycleID:            "abc",
				DeviceCount:        30,
				AuthoritativeCount: 32,
				Added:              2,
				Duration:           1500 * time.Millisecond,
			},
			want: []string{"button_sync,outcome=applied", "added=2i", "removed=0i", "duration_ms=1500i", `cycle_id="abc"`},
		},
		{
			name:   "aborted",
			sample: SyncSample{CycleID: "def", DeviceCount: 2, Aborted: true},
			want:   []string{"button_sync,outcome=aborted", "device_count=2i"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := lineProtocol(syncResultPoint(tt.sample, testTime))
			for _, want := range tt.want {
				if !strings.Contains(line, want) {
					t.Errorf("line %q missing %q", line, want)
				}
			}
		})
	}
}

func TestSpaceStatePoint(t *testing.T) {
	if line := lineProtocol(spaceStatePoint(true, testTime)); !strings.Contains(line, "space_state open=1i") {
		t.Errorf("open line = %q", line)
	}
	if line := lineProtocol(spaceStatePoint(false, testTime)); !strings.Contains(line, "space_state open=0i") {
		t.Errorf("closed line = %q", line)
	}
}

func TestGatewayStatsPoint(t *testing.T) {
	line := lineProtocol(gatewayStatsPoint(GatewaySample{
		SerialConnected: true,
		LinesRead:       120,
		Published:       7,
		Dropped:         1,
		LastSyncAge:     -1,
	}, testTime))

	for _, want := range []string{"gateway_stats ", "serial_connected=true", "broker_connected=false", "lines_read=120u", "published=7u", "publish_dropped=1u", "last_sync_age_s=-1i"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestGatewayStatsPoint_SyncAge(t *testing.T) {
	line := lineProtocol(gatewayStatsPoint(GatewaySample{LastSyncAge: 90 * time.Second}, testTime))
	if !strings.Contains(line, "last_sync_age_s=90i") {
		t.Errorf("line %q missing last_sync_age_s=90i", line)
	}
}

func TestWrite_NoWriteAPI(t *testing.T) {
	c := &Client{}
	// No write API: must be a no-op.
	c.WriteDoorEvent("doorbell")
	c.WriteSpaceState(false)
	c.WriteSyncResult(SyncSample{})
	c.WriteGatewayStats(GatewaySample{})
	c.Flush()

	if got := c.Stats().Queued; got != 0 {
		t.Errorf("Stats().Queued = %d, want 0", got)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestWriteOptions(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.InfluxDBConfig
		batch     uint
		flushMs   uint
		gatewayOK bool
	}{
		{
			name:    "defaults",
			cfg:     config.InfluxDBConfig{},
			batch:   defaultBatchSize,
			flushMs: 5000,
		},
		{
			name:      "configured",
			cfg:       config.InfluxDBConfig{BatchSize: 50, FlushInterval: 2, Gateway: "bitlair-front"},
			batch:     50,
			flushMs:   2000,
			gatewayOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := writeOptions(tt.cfg)
			if got := opts.BatchSize(); got != tt.batch {
				t.Errorf("BatchSize() = %d, want %d", got, tt.batch)
			}
			if got := opts.FlushInterval(); got != tt.flushMs {
				t.Errorf("FlushInterval() = %d, want %d", got, tt.flushMs)
			}
			if got := opts.Precision(); got != time.Millisecond {
				t.Errorf("Precision() = %v, want 1ms", got)
			}
			if got := opts.MaxRetries(); got != maxRetries {
				t.Errorf("MaxRetries() = %d, want %d", got, maxRetries)
			}
			tag, ok := opts.WriteOptions().DefaultTags()["gateway"]
			if ok != tt.gatewayOK || (ok && tag != tt.cfg.Gateway) {
				t.Errorf("gateway tag = %q (present %v), want %q", tag, ok, tt.cfg.Gateway)
			}
		})
	}
}

func TestWatchErrors(t *testing.T) {
	c := &Client{}
	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })

	errs := make(chan error, 1)
	errs <- errors.New("401 unauthorized")
	close(errs)
	c.watchErrors(errs)

	err := <-got
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("callback error = %v, want ErrWriteFailed", err)
	}
	if !strings.Contains(err.Error(), "401 unauthorized") {
		t.Errorf("callback error = %v, want server message kept", err)
	}
	if n := c.Stats().FailedBatches; n != 1 {
		t.Errorf("Stats().FailedBatches = %d, want 1", n)
	}
}
