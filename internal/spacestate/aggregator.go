package spacestate

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bitlair/doorduino-gateway/internal/bridges/doorduino"
)

// Sender writes a command to the controller.
type Sender interface {
	Send(ctx context.Context, cmd []byte) error
}

// Recorder receives every successfully pushed state, for telemetry.
type Recorder interface {
	RecordSpaceState(open bool)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Stats holds push counters.
type Stats struct {
	Pushes   uint64
	Failures uint64
}

// Aggregator derives the space state from TopicState and pushes it to the
// controller whenever something might have changed it.
//
// At most one push is in flight. Triggers arriving meanwhile collapse into
// a single follow-up push that reads the state afresh, so the controller
// always ends on the latest value and no history is queued. A failed push
// is logged and not retried until the next trigger.
type Aggregator struct {
	state  *TopicState
	device Sender

	mu      sync.Mutex
	running bool
	pending bool
	wg      sync.WaitGroup

	recorder Recorder
	logger   Logger

	pushes   atomic.Uint64
	failures atomic.Uint64
}

// NewAggregator creates an aggregator over state that pushes to device.
func NewAggregator(state *TopicState, device Sender) *Aggregator {
	return &Aggregator{
		state:  state,
		device: device,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the aggregator.
func (a *Aggregator) SetLogger(logger Logger) {
	a.logger = logger
}

// SetRecorder sets an optional telemetry sink.
func (a *Aggregator) SetRecorder(recorder Recorder) {
	a.recorder = recorder
}

// Observe records an inbound topic value and pushes the resulting state.
// Every message triggers a push, changed or not.
func (a *Aggregator) Observe(ctx context.Context, topic, value string) {
	value = strings.TrimSpace(value)
	if a.state.Set(topic, value) {
		a.logger.Debug("state topic changed", "topic", topic, "value", value)
	}
	a.Notify(ctx)
}

// HandleEvent pushes the state after a controller restart, since the
// controller forgets it on reset. Other events are ignored.
func (a *Aggregator) HandleEvent(ctx context.Context, ev doorduino.Event) {
	if ev.Kind != doorduino.EventBoardRestarted {
		return
	}
	a.logger.Info("controller restarted, re-pushing space state")
	a.Notify(ctx)
}

// Notify schedules a push without blocking.
func (a *Aggregator) Notify(ctx context.Context) {
	a.mu.Lock()
	if a.running {
		a.pending = true
		a.mu.Unlock()
		return
	}
	a.running = true
	a.wg.Add(1)
	a.mu.Unlock()

	go a.pushLoop(ctx)
}

// pushLoop pushes until no further trigger arrived during the last push.
func (a *Aggregator) pushLoop(ctx context.Context) {
	defer a.wg.Done()

	for {
		a.push(ctx)

		a.mu.Lock()
		if !a.pending {
			a.running = false
			a.mu.Unlock()
			return
		}
		a.pending = false
		a.mu.Unlock()
	}
}

func (a *Aggregator) push(ctx context.Context) {
	open := Aggregate(a.state.Snapshot())

	if err := a.device.Send(ctx, doorduino.EncodeSpaceState(open)); err != nil {
		a.failures.Add(1)
		a.logger.Warn("space state push failed", "open", open, "error", err)
		return
	}

	a.pushes.Add(1)
	a.logger.Info("space state pushed", "open", open)
	if a.recorder != nil {
		a.recorder.RecordSpaceState(open)
	}
}

// Wait blocks until no push is in flight.
func (a *Aggregator) Wait() {
	a.wg.Wait()
}

// Stats returns push counters.
func (a *Aggregator) Stats() Stats {
	return Stats{
		Pushes:   a.pushes.Load(),
		Failures: a.failures.Load(),
	}
}
