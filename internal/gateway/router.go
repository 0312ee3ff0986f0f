package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bitlair/doorduino-gateway/internal/bridges/doorduino"
	"github.com/bitlair/doorduino-gateway/internal/infrastructure/config"
)

// Lock state payloads, published retained.
const (
	LockOpen   = "open"
	LockClosed = "closed"
)

// Pulse payloads.
const (
	pulseOn  = "1"
	pulseOff = "0"
)

// outboxSize bounds the number of queued outbound messages.
const outboxSize = 64

// DoorRecorder receives door events for telemetry.
type DoorRecorder interface {
	RecordDoorEvent(event string)
}

type message struct {
	topic    string
	value    string
	retained bool
}

// RouterStats holds outbound counters.
type RouterStats struct {
	Published uint64
	Failed    uint64
	Dropped   uint64
}

// EventRouter turns controller events into outbound MQTT messages.
//
// Messages are queued and delivered in order by Run, so the serial read
// loop never waits on the broker. Doorbell and door-open events become
// pulses: "1", then "0" after the hold time.
type EventRouter struct {
	pub    Publisher
	topics config.TopicsConfig

	outbox chan message

	// mu guards closed so no pulse is added to the group once Run has
	// started waiting on it.
	mu     sync.Mutex
	closed bool
	pulses sync.WaitGroup

	recorder DoorRecorder
	logger   Logger

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewEventRouter creates a router publishing through pub.
func NewEventRouter(pub Publisher, topics config.TopicsConfig) *EventRouter {
	return &EventRouter{
		pub:    pub,
		topics: topics,
		outbox: make(chan message, outboxSize),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger.
func (r *EventRouter) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// SetRecorder sets an optional telemetry sink for door events.
func (r *EventRouter) SetRecorder(rec DoorRecorder) {
	r.recorder = rec
}

// HandleEvent maps one controller event. It never blocks on delivery.
func (r *EventRouter) HandleEvent(ctx context.Context, ev doorduino.Event) {
	switch ev.Kind {
	case doorduino.EventHornActivated:
		r.logger.Info("doorbell rang")
		r.pulse(ctx, r.topics.Doorbell)
	case doorduino.EventSolenoidActivated:
		r.logger.Info("door opened")
		r.pulse(ctx, r.topics.DoorOpen)
	case doorduino.EventLockOpening:
		r.enqueue(message{topic: r.topics.LockState, value: LockOpen, retained: true})
	case doorduino.EventLockClosing:
		r.enqueue(message{topic: r.topics.LockState, value: LockClosed, retained: true})
	case doorduino.EventButtonAuthenticated:
		r.logger.Info("ibutton accepted")
	case doorduino.EventButtonRejected:
		r.logger.Warn("ibutton rejected")
	case doorduino.EventBoardRestarted, doorduino.EventDeviceError:
		// telemetry only
	default:
		return
	}

	if r.recorder != nil {
		r.recorder.RecordDoorEvent(ev.Kind.String())
	}
}

// pulse queues "1" now and "0" after the hold time. The trailing "0" is
// sent even if ctx is cancelled meanwhile. Once Run is shutting down both
// halves are queued back to back.
func (r *EventRouter) pulse(ctx context.Context, topic string) {
	if topic == "" {
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.enqueue(message{topic: topic, value: pulseOn})
		r.enqueue(message{topic: topic, value: pulseOff})
		return
	}
	r.pulses.Add(1)
	r.mu.Unlock()

	r.enqueue(message{topic: topic, value: pulseOn})
	go func() {
		defer r.pulses.Done()
		timer := time.NewTimer(r.topics.PulseHold)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
		r.enqueue(message{topic: topic, value: pulseOff})
	}()
}

func (r *EventRouter) enqueue(msg message) {
	if msg.topic == "" {
		return
	}
	select {
	case r.outbox <- msg:
	default:
		r.dropped.Add(1)
		r.logger.Warn("outbound queue full, dropping message", "topic", msg.topic)
	}
}

// Run delivers queued messages until ctx is cancelled, then drains what
// is already queued, including the trailing half of pending pulses.
func (r *EventRouter) Run(ctx context.Context) error {
	for {
		select {
		case msg := <-r.outbox:
			r.deliver(ctx, msg)
		case <-ctx.Done():
			r.mu.Lock()
			r.closed = true
			r.mu.Unlock()
			r.pulses.Wait()
			r.drain()
			return ctx.Err()
		}
	}
}

func (r *EventRouter) drain() {
	// Give the final messages their own short deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-r.outbox:
			r.deliver(ctx, msg)
		default:
			return
		}
	}
}

func (r *EventRouter) deliver(ctx context.Context, msg message) {
	if err := r.pub.Publish(ctx, msg.topic, msg.value, msg.retained); err != nil {
		r.failed.Add(1)
		r.logger.Warn("publish failed",
			"topic", msg.topic,
			"value", msg.value,
			"error", err,
		)
		return
	}
	r.published.Add(1)
	r.logger.Debug("published", "topic", msg.topic, "value", msg.value, "retained", msg.retained)
}

// Stats returns current counters.
func (r *EventRouter) Stats() RouterStats {
	return RouterStats{
		Published: r.published.Load(),
		Failed:    r.failed.Load(),
		Dropped:   r.dropped.Load(),
	}
}
