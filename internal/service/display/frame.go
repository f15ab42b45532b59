package display

import (
	"fmt"
	"slices"
	"time"
)

// Screen tells which kind of content a frame carries.
type Screen uint8

// Screens, from the most to the least urgent.
const (
	ScreenActive Screen = iota
	ScreenAcknowledged
	ScreenStatus
	ScreenOK
	ScreenIdle
)

// String returns the screen name.
func (s Screen) String() string {
	switch s {
	case ScreenActive:
		return "active"
	case ScreenAcknowledged:
		return "acknowledged"
	case ScreenStatus:
		return "status"
	case ScreenOK:
		return "ok"
	case ScreenIdle:
		return "idle"
	default:
		return fmt.Sprintf("screen(%d)", uint8(s))
	}
}

// Frame is one display refresh.
type Frame struct {
	// Screen is the kind of content.
	Screen Screen
	// Lines are the text rows, top to bottom.
	Lines []string
	// Power is false when the backlight should be off.
	Power bool
}

// Equal reports whether two frames look the same.
func (f Frame) Equal(other Frame) bool {
	return f.Screen == other.Screen && f.Power == other.Power && slices.Equal(f.Lines, other.Lines)
}

// SystemInfo is the content of the status section.
type SystemInfo struct {
	// DeviceName is the configured device name.
	DeviceName string
	// Version is the build version.
	Version string
	// ListenAddress is where the API listens.
	ListenAddress string
	// BoundSensors is the number of points with a sensor.
	BoundSensors int
	// Alarms is the number of configured alarms.
	Alarms int
	// Uptime is the time since the monitor started.
	Uptime time.Duration
}

// InfoFunc provides the status section content on demand.
type InfoFunc func() SystemInfo
