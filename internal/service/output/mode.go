package output

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is the manual override of a relay.
type Mode uint8

// Relay modes.
const (
	// Auto follows the computed plan.
	Auto Mode = iota
	// ForceOn keeps the relay on.
	ForceOn
	// ForceOff keeps the relay off.
	ForceOff
)

// ErrInvalidMode is returned by ParseMode for unknown mode names.
var ErrInvalidMode = errors.New("invalid relay mode")

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Auto:
		return "AUTO"
	case ForceOn:
		return "FORCE_ON"
	case ForceOff:
		return "FORCE_OFF"
	default:
		return fmt.Sprintf("MODE(%d)", uint8(m))
	}
}

// ParseMode accepts AUTO, FORCE_ON, FORCE_OFF and the short forms on and off.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AUTO":
		return Auto, nil
	case "FORCE_ON", "ON":
		return ForceOn, nil
	case "FORCE_OFF", "OFF":
		return ForceOff, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidMode)
	}
}
