package doorduino

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingLink is a LineConn that records writes and serves queued lines.
type recordingLink struct {
	mu       sync.Mutex
	writes   []string
	writeErr error

	lines  chan string
	closed chan struct{}
	once   sync.Once
}

func newRecordingLink() *recordingLink {
	return &recordingLink{
		lines:  make(chan string, 64),
		closed: make(chan struct{}),
	}
}

func (l *recordingLink) ReadLine(timeout time.Duration) (string, error) {
	select {
	case line, ok := <-l.lines:
		if !ok {
			return "", ErrDisconnected
		}
		return line, nil
	case <-l.closed:
		return "", ErrDisconnected
	case <-time.After(timeout):
		return "", ErrTimeout
	}
}

func (l *recordingLink) WriteLine(b []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeErr != nil {
		return l.writeErr
	}
	l.writes = append(l.writes, string(b))
	return nil
}

func (l *recordingLink) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *recordingLink) written() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.writes...)
}

func TestDevice_SendNotConnected(t *testing.T) {
	d := NewDevice(0)
	if err := d.Send(context.Background(), EncodeListButtons()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() error = %v, want ErrNotConnected", err)
	}
}

func TestDevice_SendWritesPrimerThenCommand(t *testing.T) {
	d := NewDevice(0)
	link := newRecordingLink()
	d.Attach(link)

	if err := d.Send(context.Background(), EncodeSpaceState(true)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got := link.written()
	if len(got) != 2 || got[0] != "\n" || got[1] != "spacestate open\n" {
		t.Errorf("writes = %q, want primer then command", got)
	}
	if d.CommandsSent() != 1 {
		t.Errorf("CommandsSent() = %d, want 1", d.CommandsSent())
	}
}

func TestDevice_SendWriteError(t *testing.T) {
	d := NewDevice(0)
	link := newRecordingLink()
	link.writeErr = ErrDisconnected
	d.Attach(link)

	if err := d.Send(context.Background(), EncodeListButtons()); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Send() error = %v, want ErrDisconnected", err)
	}
}

func TestDevice_SendSerialisesCommands(t *testing.T) {
	d := NewDevice(time.Millisecond)
	link := newRecordingLink()
	d.Attach(link)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(open bool) {
			defer wg.Done()
			_ = d.Send(context.Background(), EncodeSpaceState(open))
		}(i%2 == 0)
	}
	wg.Wait()

	got := link.written()
	if len(got) != 20 {
		t.Fatalf("len(writes) = %d, want 20", len(got))
	}
	for i := 0; i < len(got); i += 2 {
		if got[i] != "\n" || got[i+1] == "\n" {
			t.Fatalf("writes interleaved at %d: %q", i, got[i:i+2])
		}
	}
}

func TestDevice_SendHonoursSettleAndContext(t *testing.T) {
	d := NewDevice(50 * time.Millisecond)
	d.Attach(newRecordingLink())

	start := time.Now()
	if err := d.Send(context.Background(), EncodeListButtons()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Send() returned after %v, want at least the settle delay", elapsed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	d2 := NewDevice(time.Hour)
	d2.Attach(newRecordingLink())
	if err := d2.Send(ctx, EncodeListButtons()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send() error = %v, want DeadlineExceeded", err)
	}
}

func TestDevice_Detach(t *testing.T) {
	d := NewDevice(0)
	d.Attach(newRecordingLink())
	if !d.Connected() {
		t.Fatal("Connected() = false after Attach")
	}

	d.Detach()
	if d.Connected() {
		t.Error("Connected() = true after Detach")
	}
	if err := d.Send(context.Background(), EncodeListButtons()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() error = %v, want ErrNotConnected", err)
	}
}

func TestDevice_Subscribe(t *testing.T) {
	d := NewDevice(0)

	events, cancel := d.Subscribe()
	d.publish(Event{Kind: EventButtonAnnounced, ButtonID: "ab12"})

	select {
	case ev := <-events:
		if ev.ButtonID != "ab12" {
			t.Errorf("ButtonID = %q, want %q", ev.ButtonID, "ab12")
		}
	default:
		t.Fatal("event not delivered")
	}

	cancel()
	cancel()
	d.publish(Event{Kind: EventHornActivated})

	select {
	case ev := <-events:
		t.Errorf("received %v after cancel", ev.Kind)
	default:
	}
}

func TestDevice_SubscribeDropsOnOverflow(t *testing.T) {
	d := NewDevice(0)
	_, cancel := d.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		d.publish(Event{Kind: EventButtonAnnounced})
	}

	if d.EventsDropped() != 5 {
		t.Errorf("EventsDropped() = %d, want 5", d.EventsDropped())
	}
}
