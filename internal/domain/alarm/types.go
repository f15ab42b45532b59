package alarm

import (
	"errors"
	"fmt"
	"strings"
)

// Type is the condition an alarm watches. The numeric value is the ordinal
// used in configuration keys.
type Type uint8

// Alarm types.
const (
	TypeHighTemperature Type = iota
	TypeLowTemperature
	TypeSensorError
	TypeSensorDisconnected
)

// Stage is the lifecycle state of an alarm.
type Stage uint8

// Alarm stages.
const (
	StageNew Stage = iota
	StageActive
	StageAcknowledged
	StageCleared
	StageResolved
)

// Priority orders alarms for display and output. Higher values are more urgent.
type Priority uint8

// Alarm priorities.
const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

var (
	// ErrInvalidType is returned when an alarm type cannot be parsed.
	ErrInvalidType = errors.New("invalid alarm type")
	// ErrInvalidPriority is returned when a priority cannot be parsed.
	ErrInvalidPriority = errors.New("invalid alarm priority")
	// ErrInvalidStage is returned when a stage cannot be parsed.
	ErrInvalidStage = errors.New("invalid alarm stage")
)

//nolint:gochecknoglobals // Lookup tables.
var (
	typeNames     = [...]string{"HIGH_TEMPERATURE", "LOW_TEMPERATURE", "SENSOR_ERROR", "SENSOR_DISCONNECTED"}
	stageNames    = [...]string{"NEW", "ACTIVE", "ACKNOWLEDGED", "CLEARED", "RESOLVED"}
	priorityNames = [...]string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}

	// typeAliases maps short names found in older configuration files.
	typeAliases = map[string]Type{
		"HIGH":         TypeHighTemperature,
		"HIGH_TEMP":    TypeHighTemperature,
		"LOW":          TypeLowTemperature,
		"LOW_TEMP":     TypeLowTemperature,
		"ERROR":        TypeSensorError,
		"DISCONNECTED": TypeSensorDisconnected,
	}
)

// Types lists every alarm type in ordinal order.
func Types() []Type {
	return []Type{TypeHighTemperature, TypeLowTemperature, TypeSensorError, TypeSensorDisconnected}
}

// Priorities lists every priority from the least to the most urgent.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// Valid reports whether t is a known alarm type.
func (t Type) Valid() bool { return int(t) < len(typeNames) }

// String returns the configuration name of the type.
func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("TYPE(%d)", uint8(t))
	}

	return typeNames[t]
}

// IsTemperature reports whether the type compares the point temperature with a threshold.
func (t Type) IsTemperature() bool {
	return t == TypeHighTemperature || t == TypeLowTemperature
}

// IsSensorFault reports whether the type reflects a faulty or missing sensor.
func (t Type) IsSensorFault() bool {
	return t == TypeSensorError || t == TypeSensorDisconnected
}

// ParseType converts a type name (or short alias) to a Type.
func ParseType(s string) (Type, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}

	if t, ok := typeAliases[name]; ok {
		return t, nil
	}

	return 0, fmt.Errorf("%q: %w", s, ErrInvalidType)
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool { return int(s) < len(stageNames) }

// String returns the stage name.
func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("STAGE(%d)", uint8(s))
	}

	return stageNames[s]
}

// ParseStage converts a stage name to a Stage.
func ParseStage(s string) (Stage, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}

	return 0, fmt.Errorf("%q: %w", s, ErrInvalidStage)
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool { return int(p) < len(priorityNames) }

// String returns the priority name.
func (p Priority) String() string {
	if !p.Valid() {
		return fmt.Sprintf("PRIORITY(%d)", uint8(p))
	}

	return priorityNames[p]
}

// ParsePriority converts a priority name to a Priority.
func ParsePriority(s string) (Priority, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range priorityNames {
		if n == name {
			return Priority(i), nil
		}
	}

	return 0, fmt.Errorf("%q: %w", s, ErrInvalidPriority)
}
