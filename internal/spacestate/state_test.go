package spacestate

import "testing"

func TestAggregate(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		want   bool
	}{
		{"one open", map[string]string{"t1": "open", "t2": "closed"}, true},
		{"all closed", map[string]string{"t1": "closed", "t2": "closed"}, false},
		{"empty", map[string]string{}, false},
		{"nil", nil, false},
		{"case sensitive", map[string]string{"t1": "OPEN"}, false},
		{"other values", map[string]string{"t1": "1", "t2": "true"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Aggregate(tt.values); got != tt.want {
				t.Errorf("Aggregate(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestTopicState(t *testing.T) {
	s := NewTopicState()

	if !s.Set("bitlair/state", "open") {
		t.Error("first Set() should report a change")
	}
	if s.Set("bitlair/state", "open") {
		t.Error("repeated Set() should not report a change")
	}
	if !s.Set("bitlair/state", "closed") {
		t.Error("new value should report a change")
	}

	snap := s.Snapshot()
	snap["bitlair/state"] = "open"
	if s.Snapshot()["bitlair/state"] != "closed" {
		t.Error("Snapshot() shares storage with TopicState")
	}
}
