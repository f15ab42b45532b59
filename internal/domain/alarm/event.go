package alarm

import (
	"fmt"
	"strings"
	"time"
)

// EventKind classifies what an Event reports.
type EventKind uint8

// Event kinds.
const (
	// EventTransition reports a stage change.
	EventTransition EventKind = iota
	// EventConfig reports a configuration change (priority, hysteresis, enabled, delays).
	EventConfig
	// EventInfo, EventWarning, EventError and EventCritical carry plain text.
	EventInfo
	EventWarning
	EventError
	EventCritical
)

// TimestampLayout is the ISO-like layout used when events are written out.
const TimestampLayout = "2006-01-02T15:04:05"

//nolint:gochecknoglobals // Lookup table.
var eventKindNames = [...]string{"transition", "config", "info", "warning", "error", "critical"}

// String returns the kind name.
func (k EventKind) String() string {
	if int(k) >= len(eventKindNames) {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}

	return eventKindNames[k]
}

// ParseEventKind converts a kind name back to an EventKind.
func ParseEventKind(s string) (EventKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range eventKindNames {
		if n == name {
			return EventKind(i), nil
		}
	}

	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Event is what the alarm core reports to logging and persistence collaborators.
type Event struct {
	// Kind tells which of the fields below are meaningful.
	Kind EventKind
	// Time is when the event happened.
	Time time.Time
	// Key identifies the alarm; empty for registry-wide messages.
	Key Key
	// PointAddress and PointName identify the measurement point.
	PointAddress int
	PointName    string
	// Type and Priority describe the alarm.
	Type     Type
	Priority Priority
	// From and To are the stages around a transition.
	From Stage
	To   Stage
	// Temperature and Threshold are the point readings at the time of the event.
	Temperature int
	Threshold   int
	// Field, OldValue and NewValue describe a configuration change.
	Field    string
	OldValue string
	NewValue string
	// Message is a free-form description.
	Message string
}

// Timestamp renders Time in the ISO-like event layout.
func (e Event) Timestamp() string {
	return e.Time.Format(TimestampLayout)
}
