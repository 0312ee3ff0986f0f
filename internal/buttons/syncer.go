package buttons

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Recorder receives the outcome of every cycle, for telemetry.
type Recorder interface {
	RecordSync(res Result, err error)
}

// Syncer decides when reconciliation runs: on a fixed interval and
// whenever Trigger is called (serial reconnect, an MQTT request).
// Cycles never overlap; triggers arriving during a cycle collapse into
// one follow-up cycle.
type Syncer struct {
	source     ListSource
	refresher  Refresher
	reconciler *Reconciler
	interval   time.Duration

	trigger chan struct{}

	recorder Recorder
	logger   Logger

	mu   sync.RWMutex
	last Cycle
}

// Cycle is the most recent outcome seen by the syncer.
type Cycle struct {
	Result   Result
	Err      error
	Finished time.Time
}

// NewSyncer creates a syncer. refresher may be nil. An interval of zero
// disables scheduled cycles.
func NewSyncer(source ListSource, refresher Refresher, reconciler *Reconciler, interval time.Duration) *Syncer {
	return &Syncer{
		source:     source,
		refresher:  refresher,
		reconciler: reconciler,
		interval:   interval,
		trigger:    make(chan struct{}, 1),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the syncer.
func (s *Syncer) SetLogger(logger Logger) {
	s.logger = logger
}

// SetRecorder sets an optional telemetry sink.
func (s *Syncer) SetRecorder(recorder Recorder) {
	s.recorder = recorder
}

// Trigger requests a cycle without blocking.
func (s *Syncer) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run performs cycles until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
		case <-s.trigger:
		}

		_, _ = s.RunOnce(ctx)
	}
}

// RunOnce refreshes the access list, loads it, and reconciles.
//
// A failed refresh is logged and the cycle continues with the list as it
// is on disk. A failed load ends the cycle.
func (s *Syncer) RunOnce(ctx context.Context) (Result, error) {
	if s.refresher != nil {
		if err := s.refresher.Refresh(ctx); err != nil {
			s.logger.Warn("access list refresh failed, using current copy", "error", err)
		}
	}

	list, err := s.source.Load()
	if err != nil {
		s.logger.Error("loading access list failed", "error", err)
		s.record(Result{}, err)
		return Result{}, err
	}

	res, err := s.reconciler.Sync(ctx, list)
	switch {
	case errors.Is(err, ErrSyncAborted):
		s.logger.Error("button sync aborted, device left untouched",
			"cycle", res.CycleID,
			"device_count", res.DeviceCount,
			"authoritative_count", res.AuthoritativeCount,
			"reason", err,
		)
	case err != nil:
		s.logger.Warn("button sync failed",
			"cycle", res.CycleID,
			"added", len(res.Added),
			"removed", len(res.Removed),
			"error", err,
		)
	default:
		s.logger.Info("button sync finished",
			"cycle", res.CycleID,
			"device_count", res.DeviceCount,
			"authoritative_count", res.AuthoritativeCount,
			"added", len(res.Added),
			"removed", len(res.Removed),
			"skipped", res.Skipped,
			"duration", res.Duration,
		)
	}

	s.record(res, err)
	return res, err
}

func (s *Syncer) record(res Result, err error) {
	s.mu.Lock()
	s.last = Cycle{Result: res, Err: err, Finished: time.Now()}
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.RecordSync(res, err)
	}
}

// Last returns the most recent cycle. Finished is zero before the first one.
func (s *Syncer) Last() Cycle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}
