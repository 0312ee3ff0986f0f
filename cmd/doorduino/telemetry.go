package main

import (
	"errors"

	"github.com/bitlair/doorduino-gateway/internal/buttons"
	"github.com/bitlair/doorduino-gateway/internal/infrastructure/influxdb"
)

// telemetry forwards component outcomes to InfluxDB.
type telemetry struct {
	client *influxdb.Client
}

func (t *telemetry) RecordDoorEvent(event string) {
	t.client.WriteDoorEvent(event)
}

func (t *telemetry) RecordSpaceState(open bool) {
	t.client.WriteSpaceState(open)
}

func (t *telemetry) RecordSync(res buttons.Result, err error) {
	t.client.WriteSyncResult(syncSample(res, err))
}

func syncSample(res buttons.Result, err error) influxdb.SyncSample {
	return influxdb.SyncSample{
		CycleID:            res.CycleID,
		DeviceCount:        res.DeviceCount,
		AuthoritativeCount: res.AuthoritativeCount,
		Added:              len(res.Added),
		Removed:            len(res.Removed),
		Duration:           res.Duration,
		Aborted:            errors.Is(err, buttons.ErrSyncAborted),
	}
}
