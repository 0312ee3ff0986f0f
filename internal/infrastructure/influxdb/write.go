package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementDoorEvent  = "door_event"
	measurementButtonSync = "button_sync"
	measurementSpaceState = "space_state"
	measurementGateway    = "gateway_stats"
)

// SyncSample summarises one button reconciliation cycle.
type SyncSample struct {
	CycleID            string
	DeviceCount        int
	AuthoritativeCount int
	Added              int
	Removed            int
	Duration           time.Duration

	// Aborted is set when a safety check stopped the cycle before any change.
	Aborted bool
}

// GatewaySample is a snapshot of the gateway's running counters.
type GatewaySample struct {
	SerialConnected bool
	LinesRead       uint64
	Disconnects     uint64
	OpenFailures    uint64
	CommandsSent    uint64

	BrokerConnected bool
	BrokerSessions  uint64
	Received        uint64

	Published uint64
	Failed    uint64
	Dropped   uint64

	StatePushes  uint64
	PushFailures uint64
	LoopRestarts uint64

	// LastSyncAge is -1 when no button sync has finished yet.
	LastSyncAge time.Duration
}

// WriteDoorEvent records a single event reported by the door controller,
// such as "doorbell", "door_open" or "board_restart".
func (c *Client) WriteDoorEvent(event string) {
	c.write(doorEventPoint(event, time.Now()))
}

// WriteSyncResult records the outcome of a reconciliation cycle.
func (c *Client) WriteSyncResult(sample SyncSample) {
	c.write(syncResultPoint(sample, time.Now()))
}

// WriteSpaceState records a space state transition pushed to the controller.
func (c *Client) WriteSpaceState(open bool) {
	c.write(spaceStatePoint(open, time.Now()))
}

// WriteGatewayStats records the periodic health counters.
func (c *Client) WriteGatewayStats(sample GatewaySample) {
	c.write(gatewayStatsPoint(sample, time.Now()))
}

func doorEventPoint(event string, at time.Time) *write.Point {
	return write.NewPoint(
		measurementDoorEvent,
		map[string]string{"event": event},
		map[string]interface{}{"count": 1},
		at,
	)
}

func syncResultPoint(s SyncSample, at time.Time) *write.Point {
	outcome := "applied"
	if s.Aborted {
		outcome = "aborted"
	}

	return write.NewPoint(
		measurementButtonSync,
		map[string]string{"outcome": outcome},
		map[string]interface{}{
			"cycle_id":            s.CycleID,
			"device_count":        s.DeviceCount,
			"authoritative_count": s.AuthoritativeCount,
			"added":               s.Added,
			"removed":             s.Removed,
			"duration_ms":         s.Duration.Milliseconds(),
		},
		at,
	)
}

func spaceStatePoint(open bool, at time.Time) *write.Point {
	value := 0
	if open {
		value = 1
	}
	return write.NewPoint(
		measurementSpaceState,
		nil,
		map[string]interface{}{"open": value},
		at,
	)
}

func gatewayStatsPoint(s GatewaySample, at time.Time) *write.Point {
	lastSync := int64(-1)
	if s.LastSyncAge >= 0 {
		lastSync = int64(s.LastSyncAge.Seconds())
	}

	return write.NewPoint(
		measurementGateway,
		nil,
		map[string]interface{}{
			"serial_connected": s.SerialConnected,
			"lines_read":       s.LinesRead,
			"disconnects":      s.Disconnects,
			"open_failures":    s.OpenFailures,
			"commands_sent":    s.CommandsSent,
			"broker_connected": s.BrokerConnected,
			"broker_sessions":  s.BrokerSessions,
			"received":         s.Received,
			"published":        s.Published,
			"publish_failed":   s.Failed,
			"publish_dropped":  s.Dropped,
			"state_pushes":     s.StatePushes,
			"push_failures":    s.PushFailures,
			"loop_restarts":    s.LoopRestarts,
			"last_sync_age_s":  lastSync,
		},
		at,
	)
}
