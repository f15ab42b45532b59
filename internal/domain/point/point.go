package point

import (
	"context"
	"errors"
	"fmt"
	"math"
)

const (
	// MaxPoints is the number of measurement point slots on the device.
	MaxPoints = 60
	// OneWirePoints is the number of leading slots reserved for one-wire sensors.
	OneWirePoints = 50

	// DefaultLowThreshold is the low alarm threshold of an unconfigured point.
	DefaultLowThreshold = -10
	// DefaultHighThreshold is the high alarm threshold of an unconfigured point.
	DefaultHighThreshold = 50
)

// ErrorBits is the error-status bitmask of a point.
type ErrorBits uint8

// Error status bits.
const (
	ErrCommunication ErrorBits = 1 << iota
	ErrOutOfRange
	ErrDisconnected
)

// AlarmBits is the alarm-status bitmask of a point.
type AlarmBits uint8

// Alarm status bits.
const (
	AlarmLow AlarmBits = 1 << iota
	AlarmHigh
)

// Kind tells which sensor family a slot is wired for.
type Kind uint8

// Slot kinds.
const (
	KindOneWire Kind = iota
	KindRTD
)

// String returns the human-readable name of the slot kind.
func (k Kind) String() string {
	if k == KindRTD {
		return "RTD"
	}

	return "one-wire"
}

// KindOf returns the sensor family of the slot at address.
func KindOf(address int) Kind {
	if address >= OneWirePoints {
		return KindRTD
	}

	return KindOneWire
}

// ErrSensorDisconnected is returned by sensors that lost their physical link.
var ErrSensorDisconnected = errors.New("sensor disconnected")

// Sensor is the physical device bound to a point.
// The point never owns the sensor.
type Sensor interface {
	// ID identifies the sensor (ROM code, channel or register).
	ID() string
	// Read returns the current temperature in degrees Celsius.
	Read(ctx context.Context) (float64, error)
	// Range returns the lowest and highest plausible readings.
	Range() (lo, hi float64)
}

// Point is a single measurement location.
// Temperatures are whole degrees Celsius.
type Point struct {
	// address is the slot number, 0..MaxPoints-1.
	address int
	// name is the operator-facing label.
	name string

	// current, min and max are the last, lowest and highest readings.
	current int
	min     int
	max     int
	// hasReading tells whether min and max hold a real value yet.
	hasReading bool

	// low and high are the alarm thresholds.
	low  int
	high int

	// alarmStatus and errorStatus are the status bitmasks.
	alarmStatus AlarmBits
	errorStatus ErrorBits

	// sensor is the bound sensor or nil.
	sensor Sensor
}

// New creates a point for the slot at address with default thresholds.
func New(address int, name string) *Point {
	if name == "" {
		name = fmt.Sprintf("Point %d", address)
	}

	return &Point{
		address: address,
		name:    name,
		low:     DefaultLowThreshold,
		high:    DefaultHighThreshold,
	}
}

// Address returns the slot number.
func (p *Point) Address() int { return p.address }

// Name returns the display name.
func (p *Point) Name() string { return p.name }

// SetName changes the display name.
func (p *Point) SetName(name string) { p.name = name }

// Kind returns the sensor family of the slot.
func (p *Point) Kind() Kind { return KindOf(p.address) }

// CurrentTemperature returns the last reading.
func (p *Point) CurrentTemperature() int { return p.current }

// MinTemperature returns the lowest reading since the last reset.
func (p *Point) MinTemperature() int { return p.min }

// MaxTemperature returns the highest reading since the last reset.
func (p *Point) MaxTemperature() int { return p.max }

// LowThreshold returns the low alarm threshold.
func (p *Point) LowThreshold() int { return p.low }

// HighThreshold returns the high alarm threshold.
func (p *Point) HighThreshold() int { return p.high }

// SetThresholds changes both alarm thresholds.
func (p *Point) SetThresholds(low, high int) {
	p.low = low
	p.high = high
	p.RefreshAlarmStatus()
}

// AlarmStatus returns the low/high alarm bits.
func (p *Point) AlarmStatus() AlarmBits { return p.alarmStatus }

// ErrorStatus returns the error bits.
func (p *Point) ErrorStatus() ErrorBits { return p.errorStatus }

// SetErrorStatus overrides the error bits.
func (p *Point) SetErrorStatus(bits ErrorBits) { p.errorStatus = bits }

// Sensor returns the bound sensor or nil.
func (p *Point) Sensor() Sensor { return p.sensor }

// Bind attaches a sensor to the point. A nil sensor unbinds it.
func (p *Point) Bind(s Sensor) {
	p.sensor = s
	if s == nil {
		p.errorStatus = 0
	}
}

// SetTemperature records a reading and updates min/max and alarm bits.
func (p *Point) SetTemperature(t int) {
	p.current = t

	if !p.hasReading {
		p.min, p.max, p.hasReading = t, t, true
	} else {
		p.min = min(p.min, t)
		p.max = max(p.max, t)
	}

	p.RefreshAlarmStatus()
}

// ResetMinMax forgets the recorded extremes; the next reading starts them again.
func (p *Point) ResetMinMax() {
	p.hasReading = false
	p.min, p.max = p.current, p.current
}

// RefreshAlarmStatus recomputes the low/high alarm bits from the thresholds.
func (p *Point) RefreshAlarmStatus() {
	var bits AlarmBits
	if p.current <= p.low {
		bits |= AlarmLow
	}

	if p.current >= p.high {
		bits |= AlarmHigh
	}

	p.alarmStatus = bits
}

// Update refreshes the temperature and error bits from the bound sensor.
// Points without a sensor are left untouched with no error bits set.
func (p *Point) Update(ctx context.Context) error {
	if p.sensor == nil {
		p.errorStatus = 0

		return nil
	}

	value, err := p.sensor.Read(ctx)
	if err != nil {
		if errors.Is(err, ErrSensorDisconnected) {
			p.errorStatus = ErrDisconnected
		} else {
			p.errorStatus = ErrCommunication
		}

		return fmt.Errorf("read sensor %s of point %d: %w", p.sensor.ID(), p.address, err)
	}

	lo, hi := p.sensor.Range()
	if math.IsNaN(value) || value < lo || value > hi {
		p.errorStatus = ErrOutOfRange

		return nil
	}

	p.errorStatus = 0
	p.SetTemperature(int(math.Round(value)))

	return nil
}
