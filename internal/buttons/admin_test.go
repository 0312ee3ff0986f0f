package buttons

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func TestCollect(t *testing.T) {
	device := newFakeController("01aa", "01bb")

	got, err := Collect(context.Background(), device, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if ids := got.Sorted(); !slices.Equal(ids, []ID{"01aa", "01bb"}) {
		t.Errorf("Collect() = %v, want [01aa 01bb]", ids)
	}
	if cmds := device.commands(); !slices.Equal(cmds, []string{"list_buttons\n"}) {
		t.Errorf("commands = %q", cmds)
	}
}

func TestCollect_SendFailure(t *testing.T) {
	device := newFakeController()
	device.sendErr = errors.New("port closed")

	if _, err := Collect(context.Background(), device, time.Second); err == nil {
		t.Fatal("Collect() error = nil, want send failure")
	}
}

func TestAdd(t *testing.T) {
	tests := []struct {
		name    string
		id      ID
		secret  string
		want    []string
		wantErr error
	}{
		{"normalizes id", " 01ABCDEF ", "s3cret", []string{"add_button 01abcdef s3cret\n"}, nil},
		{"empty secret", "01abcdef", "", nil, ErrInvalidRecord},
		{"secret with space", "01abcdef", "two words", nil, ErrInvalidRecord},
		{"empty id", "  ", "s3cret", nil, ErrInvalidRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := newFakeController()
			err := Add(context.Background(), device, tt.id, tt.secret)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Add() error = %v, want %v", err, tt.wantErr)
			}
			if got := device.commands(); !slices.Equal(got, tt.want) {
				t.Errorf("commands = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRemove(t *testing.T) {
	device := newFakeController("01abcdef")

	if err := Remove(context.Background(), device, "01ABCDEF"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if device.buttons.Has("01abcdef") {
		t.Error("button still stored after Remove")
	}

	if err := Remove(context.Background(), device, ""); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Remove(\"\") error = %v, want ErrInvalidRecord", err)
	}
}
