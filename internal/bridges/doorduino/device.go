package doorduino

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// primer is written before every command. It terminates any partial line
// the firmware may have buffered, so the command starts on a clean line.
var primer = []byte("\n")

// subscriberBuffer is the channel size handed to each subscriber.
const subscriberBuffer = 1024

// Sender is what the space-state aggregator and the reconciler need to
// talk to the controller.
type Sender interface {
	Send(ctx context.Context, cmd []byte) error
}

// Ensure Device implements Sender.
var _ Sender = (*Device)(nil)

// Device is the shared handle to the controller: the currently attached
// serial link plus a fan-out of decoded events.
//
// The monitor attaches and detaches links; any number of goroutines may
// Send. Commands are serialised so primer, command and settle delay of
// one caller never interleave with another's.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Device struct {
	settle time.Duration

	// writeMu is held for primer + command + settle.
	writeMu sync.Mutex

	connMu sync.RWMutex
	conn   LineConn

	subsMu sync.Mutex
	subs   map[int]chan Event
	nextID int

	commandsTx    atomic.Uint64
	eventsDropped atomic.Uint64
}

// NewDevice creates a Device that waits settle after every command.
func NewDevice(settle time.Duration) *Device {
	return &Device{
		settle: settle,
		subs:   make(map[int]chan Event),
	}
}

// Attach makes conn the link used by Send.
func (d *Device) Attach(conn LineConn) {
	d.connMu.Lock()
	d.conn = conn
	d.connMu.Unlock()
}

// Detach clears the link. Subsequent Sends fail with ErrNotConnected.
func (d *Device) Detach() {
	d.connMu.Lock()
	d.conn = nil
	d.connMu.Unlock()
}

// Connected reports whether a link is attached.
func (d *Device) Connected() bool {
	d.connMu.RLock()
	defer d.connMu.RUnlock()
	return d.conn != nil
}

// Send writes one command and waits the settle delay.
//
// The firmware has no acknowledgement framing; the settle delay is the
// only pacing between commands.
//
// Returns:
//   - error: ErrNotConnected, ErrDisconnected, or ctx.Err() if cancelled during the settle delay
func (d *Device) Send(ctx context.Context, cmd []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	d.connMu.RLock()
	conn := d.conn
	d.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	if err := conn.WriteLine(primer); err != nil {
		return err
	}
	if err := conn.WriteLine(cmd); err != nil {
		return err
	}
	d.commandsTx.Add(1)

	return sleep(ctx, d.settle)
}

// Subscribe returns a channel receiving every event dispatched after the
// call, and a function that ends the subscription. Events are dropped for
// a subscriber whose buffer is full.
func (d *Device) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	d.subsMu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = ch
	d.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.subsMu.Lock()
			delete(d.subs, id)
			d.subsMu.Unlock()
		})
	}
}

// publish delivers ev to all subscribers without blocking.
func (d *Device) publish(ev Event) {
	d.subsMu.Lock()
	defer d.subsMu.Unlock()

	for _, ch := range d.subs {
		select {
		case ch <- ev:
		default:
			d.eventsDropped.Add(1)
		}
	}
}

// CommandsSent returns the number of commands written since start.
func (d *Device) CommandsSent() uint64 {
	return d.commandsTx.Load()
}

// EventsDropped returns the number of events lost to full subscriber buffers.
func (d *Device) EventsDropped() uint64 {
	return d.eventsDropped.Load()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
