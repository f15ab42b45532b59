package sensor

import (
	"context"
	"fmt"
	"sync"

	"github.com/oshokin/tempmon/internal/domain/point"
)

// Measuring ranges in °C.
const (
	OneWireMin = -55
	OneWireMax = 125
	RTDMin     = -200
	RTDMax     = 850
	// DisconnectedValue is the raw register value reported for a missing sensor.
	DisconnectedValue = 0x8000
	// DefaultScale converts tenths of a degree to degrees.
	DefaultScale = 0.1
)

// RangeOf returns the measuring range of a point kind.
func RangeOf(k point.Kind) (float64, float64) {
	if k == point.KindRTD {
		return RTDMin, RTDMax
	}

	return OneWireMin, OneWireMax
}

// Simulated is a sensor whose reading is set by hand.
type Simulated struct {
	// mu guards value and err.
	mu sync.Mutex
	// id identifies the sensor.
	id string
	// kind selects the measuring range.
	kind point.Kind
	// value is returned by Read.
	value float64
	// err, when set, is returned by Read instead of value.
	err error
}

// NewSimulated creates a simulated sensor with an initial reading.
func NewSimulated(id string, kind point.Kind, value float64) *Simulated {
	return &Simulated{id: id, kind: kind, value: value}
}

// ID returns the sensor identifier.
func (s *Simulated) ID() string { return s.id }

// Range returns the measuring range.
func (s *Simulated) Range() (float64, float64) { return RangeOf(s.kind) }

// Read returns the current value or the injected failure.
func (s *Simulated) Read(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return 0, s.err
	}

	return s.value, nil
}

// Set changes the reading and clears any injected failure.
func (s *Simulated) Set(value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = value
	s.err = nil
}

// Fail makes the following reads return err.
func (s *Simulated) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = err
}

// InputReader reads Modbus input registers.
type InputReader interface {
	ReadInputRegisters(addr, qty uint16) ([]uint16, error)
}

// Modbus is a sensor whose reading lives in one Modbus input register as a
// signed, scaled value.
type Modbus struct {
	// id identifies the sensor.
	id string
	// kind selects the measuring range.
	kind point.Kind
	// reader performs the request.
	reader InputReader
	// register is the input register address.
	register uint16
	// scale multiplies the raw value.
	scale float64
}

// NewModbus creates a Modbus-polled sensor. A zero scale means DefaultScale.
func NewModbus(id string, kind point.Kind, reader InputReader, register uint16, scale float64) *Modbus {
	if scale == 0 {
		scale = DefaultScale
	}

	return &Modbus{id: id, kind: kind, reader: reader, register: register, scale: scale}
}

// ID returns the sensor identifier.
func (m *Modbus) ID() string { return m.id }

// Range returns the measuring range.
func (m *Modbus) Range() (float64, float64) { return RangeOf(m.kind) }

// Read fetches and scales the register. DisconnectedValue reports a missing sensor.
func (m *Modbus) Read(context.Context) (float64, error) {
	regs, err := m.reader.ReadInputRegisters(m.register, 1)
	if err != nil {
		return 0, fmt.Errorf("read input register %d: %w", m.register, err)
	}

	if len(regs) == 0 {
		return 0, fmt.Errorf("read input register %d: empty response", m.register)
	}

	if regs[0] == DisconnectedValue {
		return 0, point.ErrSensorDisconnected
	}

	return float64(int16(regs[0])) * m.scale, nil
}
