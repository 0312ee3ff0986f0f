package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bitlair/doorduino-gateway/internal/bridges/doorduino"
	"github.com/bitlair/doorduino-gateway/internal/infrastructure/config"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []message
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, topic, value string, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, message{topic: topic, value: value, retained: retained})
	return nil
}

func (p *recordingPublisher) snapshot() []message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]message(nil), p.msgs...)
}

type recordingDoorRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingDoorRecorder) RecordDoorEvent(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func testTopics() config.TopicsConfig {
	return config.TopicsConfig{
		Doorbell:  "bitlair/doorduino/doorbell",
		DoorOpen:  "bitlair/doorduino/dooropen",
		LockState: "bitlair/doorduino/lockstate",
		PulseHold: 20 * time.Millisecond,
	}
}

func startRouter(t *testing.T, r *EventRouter) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestEventRouter_Pulses(t *testing.T) {
	tests := []struct {
		line  string
		topic string
	}{
		{"Horn activated", "bitlair/doorduino/doorbell"},
		{"Solenoid activated", "bitlair/doorduino/dooropen"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			pub := &recordingPublisher{}
			r := NewEventRouter(pub, testTopics())
			stop := startRouter(t, r)
			defer stop()

			r.HandleEvent(context.Background(), doorduino.Decode(tt.line))

			waitFor(t, "pulse", func() bool { return len(pub.snapshot()) == 2 })
			got := pub.snapshot()
			want := []message{
				{topic: tt.topic, value: "1"},
				{topic: tt.topic, value: "0"},
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("message %d = %+v, want %+v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestEventRouter_LockStateRetainedInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewEventRouter(pub, testTopics())
	stop := startRouter(t, r)
	defer stop()

	ctx := context.Background()
	r.HandleEvent(ctx, doorduino.Decode("opening lock"))
	r.HandleEvent(ctx, doorduino.Decode("closing lock"))
	r.HandleEvent(ctx, doorduino.Decode("opening lock"))

	waitFor(t, "lock state", func() bool { return len(pub.snapshot()) == 3 })
	got := pub.snapshot()
	for i, value := range []string{LockOpen, LockClosed, LockOpen} {
		want := message{topic: "bitlair/doorduino/lockstate", value: value, retained: true}
		if got[i] != want {
			t.Errorf("message %d = %+v, want %+v", i, got[i], want)
		}
	}
}

func TestEventRouter_IgnoresInformationalEvents(t *testing.T) {
	pub := &recordingPublisher{}
	rec := &recordingDoorRecorder{}
	r := NewEventRouter(pub, testTopics())
	r.SetRecorder(rec)
	stop := startRouter(t, r)

	ctx := context.Background()
	for _, line := range []string{"iButton authenticated", "iButton not authenticated", "button list start", "button: 01abcdef", "hello"} {
		r.HandleEvent(ctx, doorduino.Decode(line))
	}
	stop()

	if got := pub.snapshot(); len(got) != 0 {
		t.Errorf("published %v, want nothing", got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := []string{"button_authenticated", "button_rejected"}
	if len(rec.events) != len(want) {
		t.Fatalf("recorded %v, want %v", rec.events, want)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("recorded[%d] = %q, want %q", i, rec.events[i], want[i])
		}
	}
}

func TestEventRouter_ShutdownCompletesPulse(t *testing.T) {
	pub := &recordingPublisher{}
	topics := testTopics()
	topics.PulseHold = time.Hour
	r := NewEventRouter(pub, topics)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	r.HandleEvent(ctx, doorduino.Decode("Horn activated"))
	waitFor(t, "pulse start", func() bool { return len(pub.snapshot()) == 1 })

	cancel()
	<-done

	got := pub.snapshot()
	if len(got) != 2 || got[1].value != "0" {
		t.Errorf("published %+v, want trailing \"0\"", got)
	}
}

func TestEventRouter_PublishFailureCounted(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	r := NewEventRouter(pub, testTopics())
	stop := startRouter(t, r)

	r.HandleEvent(context.Background(), doorduino.Decode("closing lock"))
	waitFor(t, "failure", func() bool { return r.Stats().Failed == 1 })
	stop()

	if got := r.Stats().Published; got != 0 {
		t.Errorf("Published = %d, want 0", got)
	}
}

func TestEventRouter_DropsWhenQueueFull(t *testing.T) {
	r := NewEventRouter(&recordingPublisher{}, testTopics())

	for i := 0; i < outboxSize+3; i++ {
		r.HandleEvent(context.Background(), doorduino.Decode("opening lock"))
	}

	if got := r.Stats().Dropped; got != 3 {
		t.Errorf("Dropped = %d, want 3", got)
	}
}

func TestEventRouter_PulseAfterShutdown(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewEventRouter(pub, testTopics())
	stop := startRouter(t, r)
	stop()

	r.HandleEvent(context.Background(), doorduino.Decode("Solenoid activated"))

	if got := len(r.outbox); got != 2 {
		t.Fatalf("queued = %d, want both halves of the pulse", got)
	}
	for _, want := range []string{"1", "0"} {
		if msg := <-r.outbox; msg.value != want {
			t.Errorf("queued value = %q, want %q", msg.value, want)
		}
	}
}

func TestEventRouter_PulsesDuringShutdownStayPaired(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewEventRouter(pub, testTopics())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			r.HandleEvent(ctx, doorduino.Decode("Horn activated"))
		}
	}()

	cancel()
	<-done
	wg.Wait()

	ones, zeros := 0, 0
	count := func(msg message) {
		switch msg.value {
		case "1":
			ones++
		case "0":
			zeros++
		}
	}
	for _, msg := range pub.snapshot() {
		count(msg)
	}
	for len(r.outbox) > 0 {
		count(<-r.outbox)
	}

	if ones != 20 || zeros != 20 {
		t.Errorf("pulse halves = %d on, %d off, want 20 each", ones, zeros)
	}
}
