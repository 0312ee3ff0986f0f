package spacestate

import "sync"

// ValueOpen is the topic value that marks the space as open.
const ValueOpen = "open"

// TopicState holds the last value seen on each state topic.
// Topics are never removed; silence on a topic is not a state.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type TopicState struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewTopicState returns an empty TopicState.
func NewTopicState() *TopicState {
	return &TopicState{values: make(map[string]string)}
}

// Set records value for topic and reports whether it changed.
func (s *TopicState) Set(topic, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.values[topic]
	s.values[topic] = value
	return !ok || old != value
}

// Snapshot returns a copy of all topic values.
func (s *TopicState) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Aggregate reports whether any topic says the space is open.
// An empty map is closed.
func Aggregate(values map[string]string) bool {
	for _, v := range values {
		if v == ValueOpen {
			return true
		}
	}
	return false
}
