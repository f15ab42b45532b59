package modbus

import (
	"github.com/oshokin/tempmon/internal/domain/alarm"
	"github.com/oshokin/tempmon/internal/domain/point"
	"github.com/oshokin/tempmon/internal/service/output"
)

// Register map, relative to the base register.
const (
	// PointBlockOffset is the first point register. Each point uses two
	// registers: the temperature as int16 and the status word.
	PointBlockOffset = 0
	// RegistersPerPoint is the size of one point entry.
	RegistersPerPoint = 2
	// SummaryOffset holds ACTIVE counts for LOW..CRITICAL, then ACKNOWLEDGED counts.
	SummaryOffset = 200
	// SummaryLength is the size of the summary block.
	SummaryLength = 8
	// OutputsOffset holds one bit per output, in output.Names order.
	OutputsOffset = 210
	// ModesOffset holds two bits per relay, in output.Relays order.
	ModesOffset = 211
	// MapLength is the size of the whole register map.
	MapLength = ModesOffset + 1
)

// Status word bits.
const (
	// StatusLowAlarm and StatusHighAlarm mirror the point alarm bits.
	StatusLowAlarm  = 1 << 0
	StatusHighAlarm = 1 << 1
	// statusErrorShift positions the point error bits.
	statusErrorShift = 2
	// StatusBound is set when a sensor is attached.
	StatusBound = 1 << 7
)

// State is everything the publisher exposes.
type State struct {
	// Points are the measurement points in address order.
	Points []*point.Point
	// Summary is the alarm summary.
	Summary alarm.Summary
	// Outputs is the last applied signal of each output.
	Outputs map[output.Name]output.Signal
	// Modes is the manual mode of each relay.
	Modes map[output.Name]output.Mode
}

// Encode converts the state into the full register map.
func Encode(s State) []uint16 {
	regs := make([]uint16, MapLength)

	for _, p := range s.Points {
		if p == nil || p.Address() < 0 || p.Address() >= point.MaxPoints {
			continue
		}

		at := PointBlockOffset + p.Address()*RegistersPerPoint
		regs[at] = uint16(int16(p.CurrentTemperature()))
		regs[at+1] = StatusWord(p)
	}

	for i, n := range s.Summary.Active {
		regs[SummaryOffset+i] = uint16(n)
	}

	for i, n := range s.Summary.Acknowledged {
		regs[SummaryOffset+len(s.Summary.Active)+i] = uint16(n)
	}

	var outputs uint16

	for i, name := range output.Names() {
		if s.Outputs[name].On {
			outputs |= 1 << i
		}
	}

	regs[OutputsOffset] = outputs

	var modes uint16

	for i, relay := range output.Relays() {
		modes |= uint16(s.Modes[relay]&0x3) << (2 * i)
	}

	regs[ModesOffset] = modes

	return regs
}

// StatusWord packs the alarm bits, error bits and binding of a point.
func StatusWord(p *point.Point) uint16 {
	var w uint16

	if p.AlarmStatus()&point.AlarmLow != 0 {
		w |= StatusLowAlarm
	}

	if p.AlarmStatus()&point.AlarmHigh != 0 {
		w |= StatusHighAlarm
	}

	w |= uint16(p.ErrorStatus()) << statusErrorShift

	if p.Sensor() != nil {
		w |= StatusBound
	}

	return w
}
