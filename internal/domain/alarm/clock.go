package alarm

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDelay is returned for a non-positive acknowledgment timeout.
var ErrInvalidDelay = errors.New("invalid acknowledged delay")

// Clock is the monotonic time source driving dwell and timeout checks.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now, which carries a monotonic reading.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// AcknowledgedDelays maps each priority tier to its acknowledgment timeout.
type AcknowledgedDelays struct {
	// Critical is the timeout of CRITICAL alarms.
	Critical time.Duration
	// High is the timeout of HIGH alarms.
	High time.Duration
	// Medium is the timeout of MEDIUM alarms.
	Medium time.Duration
	// Low is the timeout of LOW alarms.
	Low time.Duration
}

const (
	// DefaultClearDelay is the dwell in CLEARED before an alarm resolves on its own.
	DefaultClearDelay = 10 * time.Second
)

// DefaultAcknowledgedDelays returns the factory acknowledgment timeouts.
func DefaultAcknowledgedDelays() AcknowledgedDelays {
	return AcknowledgedDelays{
		Critical: 5 * time.Minute,
		High:     15 * time.Minute,
		Medium:   30 * time.Minute,
		Low:      60 * time.Minute,
	}
}

// For returns the timeout of priority p.
func (d AcknowledgedDelays) For(p Priority) time.Duration {
	switch p {
	case PriorityCritical:
		return d.Critical
	case PriorityHigh:
		return d.High
	case PriorityMedium:
		return d.Medium
	default:
		return d.Low
	}
}

// Validate checks that every tier has a positive timeout.
func (d AcknowledgedDelays) Validate() error {
	for _, p := range Priorities() {
		if d.For(p) <= 0 {
			return fmt.Errorf("%s: %w", p, ErrInvalidDelay)
		}
	}

	return nil
}
