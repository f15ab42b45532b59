package output

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/oshokin/tempmon/internal/logger"
)

// ErrUnknownRelay is returned when a mode is set on an output that is not a relay.
var ErrUnknownRelay = errors.New("unknown relay")

// Ports drives the physical outputs.
type Ports interface {
	// Write switches an output solid on or off.
	Write(ctx context.Context, name Name, on bool) error
	// StartBlink starts (or restarts with a new pattern) a blink on an output.
	StartBlink(ctx context.Context, name Name, on, off time.Duration) error
	// StopBlink stops a running blink and leaves the output off.
	StopBlink(ctx context.Context, name Name) error
}

// Arbitrator applies plans to the ports. It holds no locks: the monitor
// serializes Apply and SetMode with its tick.
type Arbitrator struct {
	// ports receives the writes.
	ports Ports
	// modes holds the manual mode of each relay.
	modes map[Name]Mode
	// applied is the last signal each output accepted; missing means unknown.
	applied map[Name]Signal
	// last is the most recent plan, re-applied when a mode changes.
	last Plan
}

// NewArbitrator creates an arbitrator with every relay in AUTO mode.
func NewArbitrator(ports Ports) *Arbitrator {
	a := &Arbitrator{
		ports:   ports,
		modes:   make(map[Name]Mode, len(Relays())),
		applied: make(map[Name]Signal, len(Names())),
	}

	for _, relay := range Relays() {
		a.modes[relay] = Auto
	}

	return a
}

// Apply drives every output toward the plan after manual overrides.
// Outputs that fail keep their previous known state and are retried on the
// next call. The returned error joins every port failure.
func (a *Arbitrator) Apply(ctx context.Context, plan Plan) error {
	a.last = plan

	var errs []error

	for _, name := range Names() {
		if err := a.drive(ctx, name, a.resolve(name, plan)); err != nil {
			logger.ErrorKV(ctx, "Output write failed", "output", name, "error", err)

			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Reapply applies the most recent plan again, e.g. after a mode change.
func (a *Arbitrator) Reapply(ctx context.Context) error {
	return a.Apply(ctx, a.last)
}

// SetMode changes the manual mode of a relay. It takes effect on the next Apply.
func (a *Arbitrator) SetMode(ctx context.Context, name Name, mode Mode) error {
	if !IsRelay(name) {
		return fmt.Errorf("%s: %w", name, ErrUnknownRelay)
	}

	switch mode {
	case Auto, ForceOn, ForceOff:
	default:
		return fmt.Errorf("%s: %w", mode, ErrInvalidMode)
	}

	if old := a.modes[name]; old != mode {
		a.modes[name] = mode

		logger.InfoKV(ctx, "Relay mode changed", "relay", name, "before", old.String(), "after", mode.String())
	}

	return nil
}

// Mode returns the manual mode of a relay; non-relays report AUTO.
func (a *Arbitrator) Mode(name Name) Mode {
	return a.modes[name]
}

// Modes returns a copy of every relay mode.
func (a *Arbitrator) Modes() map[Name]Mode {
	return maps.Clone(a.modes)
}

// State returns a copy of the last signal each output accepted.
func (a *Arbitrator) State() map[Name]Signal {
	return maps.Clone(a.applied)
}

// resolve applies the manual mode on top of the plan.
func (a *Arbitrator) resolve(name Name, plan Plan) Signal {
	switch a.modes[name] {
	case ForceOn:
		return Solid
	case ForceOff:
		return Off
	default:
		return plan.For(name)
	}
}

// drive moves one output to want. Blinks are started only when the pattern
// changes and stopped before a solid write.
func (a *Arbitrator) drive(ctx context.Context, name Name, want Signal) error {
	current, known := a.applied[name]
	if known && current == want {
		return nil
	}

	if want.Blinking() {
		if err := a.ports.StartBlink(ctx, name, want.BlinkOn, want.BlinkOff); err != nil {
			return fmt.Errorf("start blink on %s: %w", name, err)
		}
	} else {
		if known && current.Blinking() {
			if err := a.ports.StopBlink(ctx, name); err != nil {
				return fmt.Errorf("stop blink on %s: %w", name, err)
			}
		}

		if err := a.ports.Write(ctx, name, want.On); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	before := "UNKNOWN"
	if known {
		before = current.String()
	}

	a.applied[name] = want

	logger.InfoKV(ctx, "Output changed", "output", name, "before", before, "after", want.String())

	return nil
}
