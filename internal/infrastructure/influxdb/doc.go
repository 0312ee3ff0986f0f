// Package influxdb records door telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library and exposes a small
// set of writers for what the gateway observes:
//   - door_event: doorbell presses, door openings, board restarts, rejected buttons
//   - button_sync: the outcome of each access list reconciliation cycle
//   - space_state: the open/closed value pushed to the controller
//   - gateway_stats: periodic link and loop counters
//
// Every point carries a gateway=<name> tag when InfluxDBConfig.Gateway is
// set. Points use millisecond precision.
//
// Telemetry is optional and disabled by default. It is not a store of
// record: nothing in the gateway reads these points back.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDoorEvent("doorbell")
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes are non-blocking and batched; failed batches are counted in Stats
// and passed to SetOnError wrapped in ErrWriteFailed.
package influxdb
