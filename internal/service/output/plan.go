package output

import (
	"fmt"
	"time"

	"github.com/oshokin/tempmon/internal/domain/alarm"
)

// Name identifies a physical output.
type Name string

// Outputs of the device.
const (
	// Relay1 drives the siren.
	Relay1 Name = "Relay1"
	// Relay2 drives the beacon.
	Relay2 Name = "Relay2"
	// Relay3 is switched manually only.
	Relay3    Name = "Relay3"
	RedLED    Name = "RedLED"
	YellowLED Name = "YellowLED"
	BlueLED   Name = "BlueLED"
	GreenLED  Name = "GreenLED"
)

// Blink patterns.
const (
	BeaconBlinkOn  = 2000 * time.Millisecond
	BeaconBlinkOff = 30000 * time.Millisecond
	LowBlinkOn     = 200 * time.Millisecond
	LowBlinkOff    = 2000 * time.Millisecond
)

// Names lists every output in the order they are applied.
func Names() []Name {
	return []Name{Relay1, Relay2, Relay3, RedLED, YellowLED, BlueLED, GreenLED}
}

// Relays lists the outputs that accept a manual mode.
func Relays() []Name {
	return []Name{Relay1, Relay2, Relay3}
}

// IsRelay reports whether n accepts a manual mode.
func IsRelay(n Name) bool {
	return n == Relay1 || n == Relay2 || n == Relay3
}

// Signal is the desired state of one output: off, solid on or blinking.
type Signal struct {
	// On is true for solid on and for blinking.
	On bool
	// BlinkOn and BlinkOff are the blink phases; zero means solid.
	BlinkOn  time.Duration
	BlinkOff time.Duration
}

//nolint:gochecknoglobals // Immutable signal values.
var (
	// Off is a dark output.
	Off = Signal{}
	// Solid is a permanently lit output.
	Solid = Signal{On: true}
)

// Blink returns a blinking signal.
func Blink(on, off time.Duration) Signal {
	return Signal{On: true, BlinkOn: on, BlinkOff: off}
}

// Blinking reports whether the signal blinks.
func (s Signal) Blinking() bool {
	return s.On && s.BlinkOn > 0
}

// String renders the signal for logs.
func (s Signal) String() string {
	switch {
	case s.Blinking():
		return fmt.Sprintf("BLINK %dms/%dms", s.BlinkOn.Milliseconds(), s.BlinkOff.Milliseconds())
	case s.On:
		return "ON"
	default:
		return "OFF"
	}
}

// Plan is the automatic state of every output except Relay3.
type Plan struct {
	Siren  Signal
	Beacon Signal
	Red    Signal
	Yellow Signal
	Blue   Signal
	Green  Signal
}

// For returns the signal planned for output n. Relay3 is always off.
func (p Plan) For(n Name) Signal {
	switch n {
	case Relay1:
		return p.Siren
	case Relay2:
		return p.Beacon
	case RedLED:
		return p.Red
	case YellowLED:
		return p.Yellow
	case BlueLED:
		return p.Blue
	case GreenLED:
		return p.Green
	default:
		return Off
	}
}

// Compute derives the output plan from the alarm summary.
//
// The siren sounds while any alarm is unacknowledged. The beacon and LEDs
// follow the most urgent priority present: CRITICAL lights the beacon and the
// red LED, HIGH the yellow LED, MEDIUM the blue LED, LOW only blinks the blue
// LED while unacknowledged. With no alarms the green LED is lit.
func Compute(s alarm.Summary) Plan {
	p := Plan{
		Siren: Signal{On: s.AnyActive()},
	}

	switch {
	case s.Present(alarm.PriorityCritical):
		p.Beacon = Solid
		p.Red = Solid
	case s.Present(alarm.PriorityHigh):
		if s.Active[alarm.PriorityHigh] > 0 {
			p.Beacon = Solid
		} else {
			p.Beacon = Blink(BeaconBlinkOn, BeaconBlinkOff)
		}

		p.Yellow = Solid
	case s.Present(alarm.PriorityMedium):
		if s.Active[alarm.PriorityMedium] > 0 {
			p.Beacon = Blink(BeaconBlinkOn, BeaconBlinkOff)
		}

		p.Blue = Solid
	case s.Present(alarm.PriorityLow):
		if s.Active[alarm.PriorityLow] > 0 {
			p.Blue = Blink(LowBlinkOn, LowBlinkOff)
		}
	default:
		p.Green = Solid
	}

	return p
}
