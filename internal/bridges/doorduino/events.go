package doorduino

import "strings"

// EventKind identifies what a line from the controller reported.
type EventKind int

const (
	// EventUnrecognized is any line without a known meaning. Informational only.
	EventUnrecognized EventKind = iota
	EventHornActivated
	EventSolenoidActivated
	EventButtonAuthenticated
	EventButtonRejected
	EventLockOpening
	EventLockClosing
	EventButtonListStart
	EventButtonAnnounced
	EventBoardRestarted
	EventDeviceError
)

var eventKindNames = map[EventKind]string{
	EventUnrecognized:        "unrecognized",
	EventHornActivated:       "horn_activated",
	EventSolenoidActivated:   "solenoid_activated",
	EventButtonAuthenticated: "button_authenticated",
	EventButtonRejected:      "button_rejected",
	EventLockOpening:         "lock_opening",
	EventLockClosing:         "lock_closing",
	EventButtonListStart:     "button_list_start",
	EventButtonAnnounced:     "button_announced",
	EventBoardRestarted:      "board_restarted",
	EventDeviceError:         "device_error",
}

// String returns the snake_case name used in logs and telemetry.
func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is one decoded line from the controller.
type Event struct {
	Kind EventKind

	// ButtonID is set for EventButtonAnnounced: trimmed and lower-cased.
	ButtonID string

	// Raw is the line as received, without the line terminator.
	Raw string
}

// Literal lines emitted by the firmware. Matching is exact and case-sensitive.
var phrases = map[string]EventKind{
	"Horn activated":            EventHornActivated,
	"Solenoid activated":        EventSolenoidActivated,
	"iButton authenticated":     EventButtonAuthenticated,
	"iButton not authenticated": EventButtonRejected,
	"opening lock":              EventLockOpening,
	"closing lock":              EventLockClosing,
	"button list start":         EventButtonListStart,
	"DEBUG: Board started":      EventBoardRestarted,
}

const (
	buttonPrefix = "button:"
	errorPrefix  = "ERROR:"
)

// Decode maps a line from the controller to an Event.
//
// Unknown lines decode to EventUnrecognized; Decode never fails, so new
// firmware messages are tolerated.
func Decode(line string) Event {
	trimmed := strings.TrimSpace(line)
	ev := Event{Kind: EventUnrecognized, Raw: line}

	if kind, ok := phrases[trimmed]; ok {
		ev.Kind = kind
		return ev
	}

	if rest, ok := strings.CutPrefix(trimmed, buttonPrefix); ok {
		id := strings.ToLower(strings.TrimSpace(rest))
		if id != "" {
			ev.Kind = EventButtonAnnounced
			ev.ButtonID = id
		}
		return ev
	}

	if strings.HasPrefix(trimmed, errorPrefix) {
		ev.Kind = EventDeviceError
	}

	return ev
}
