package modbus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/tempmon/internal/domain/alarm"
	"github.com/oshokin/tempmon/internal/domain/point"
	"github.com/oshokin/tempmon/internal/service/output"
)

var errLinkDown = errors.New("link down")

// write is one recorded WriteRegisters call.
type write struct {
	addr uint16
	regs []uint16
}

// fakeDevice records writes and serves holding registers from a map.
type fakeDevice struct {
	writes   []write
	holding  map[uint16]uint16
	writeErr error
	readErr  error
}

func (d *fakeDevice) WriteRegisters(addr uint16, regs []uint16) error {
	d.writes = append(d.writes, write{addr: addr, regs: append([]uint16(nil), regs...)})

	return d.writeErr
}

func (d *fakeDevice) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	if d.readErr != nil {
		return nil, d.readErr
	}

	out := make([]uint16, qty)
	for i := range out {
		out[i] = d.holding[addr+uint16(i)]
	}

	return out, nil
}

type stubSensor struct{}

func (stubSensor) ID() string                            { return "stub" }
func (stubSensor) Read(context.Context) (float64, error) { return 0, nil }
func (stubSensor) Range() (float64, float64)             { return -55, 125 }

func TestEncode(t *testing.T) {
	t.Parallel()

	hot := point.New(3, "Boiler")
	hot.SetThresholds(0, 50)
	hot.Bind(stubSensor{})
	hot.SetTemperature(55)

	cold := point.New(4, "Freezer")
	cold.SetThresholds(-10, 50)
	cold.SetTemperature(-18)
	cold.SetErrorStatus(point.ErrCommunication)

	regs := Encode(State{
		Points:  []*point.Point{hot, cold},
		Summary: alarm.Summary{Active: [4]int{0, 0, 2, 0}, Acknowledged: [4]int{1, 0, 0, 1}},
		Outputs: map[output.Name]output.Signal{
			output.Relay1:   output.Solid,
			output.Relay2:   output.Blink(output.BeaconBlinkOn, output.BeaconBlinkOff),
			output.GreenLED: output.Off,
		},
		Modes: map[output.Name]output.Mode{output.Relay3: output.ForceOff},
	})

	require.Len(t, regs, MapLength)
	require.Equal(t, uint16(55), regs[6])
	require.Equal(t, uint16(StatusHighAlarm|StatusBound), regs[7])
	require.Equal(t, int16(-18), int16(regs[8]))
	require.Equal(t, uint16(StatusLowAlarm|uint16(point.ErrCommunication)<<2), regs[9])

	require.Equal(t, []uint16{0, 0, 2, 0, 1, 0, 0, 1}, regs[SummaryOffset:SummaryOffset+SummaryLength])
	require.Equal(t, uint16(0b11), regs[OutputsOffset])
	require.Equal(t, uint16(output.ForceOff)<<4, regs[ModesOffset])
}

func TestPublishChunksRequests(t *testing.T) {
	t.Parallel()

	dev := new(fakeDevice)
	p := NewPublisher(dev, dev, 1000, 300)

	require.NoError(t, p.Publish(context.Background(), State{}))
	require.Len(t, dev.writes, 2)
	require.Equal(t, uint16(1000), dev.writes[0].addr)
	require.Len(t, dev.writes[0].regs, maxWriteRegisters)
	require.Equal(t, uint16(1000+maxWriteRegisters), dev.writes[1].addr)
	require.Len(t, dev.writes[1].regs, MapLength-maxWriteRegisters)

	dev.writeErr = errLinkDown
	require.ErrorIs(t, p.Publish(context.Background(), State{}), errLinkDown)
}

func TestRelayCommand(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dev := &fakeDevice{holding: map[uint16]uint16{}}
	p := NewPublisher(dev, dev, 0, 300)

	for value, want := range map[uint16]output.Mode{
		RelayCommandAuto: output.Auto,
		RelayCommandOn:   output.ForceOn,
		RelayCommandOff:  output.ForceOff,
	} {
		dev.holding[300] = value

		mode, err := p.RelayCommand(ctx)
		require.NoError(t, err)
		require.Equal(t, want, mode)
	}

	dev.holding[300] = 7
	_, err := p.RelayCommand(ctx)
	require.ErrorIs(t, err, errInvalidRelayCommand)

	dev.readErr = errLinkDown
	_, err = p.RelayCommand(ctx)
	require.ErrorIs(t, err, errLinkDown)

	mode, err := NewPublisher(dev, nil, 0, 300).RelayCommand(ctx)
	require.NoError(t, err)
	require.Equal(t, output.Auto, mode)
}

func TestRegisterPacking(t *testing.T) {
	t.Parallel()

	regs := []uint16{0x0102, 0xFFEE, 0}
	raw := packRegisters(regs)
	require.Equal(t, []byte{0x01, 0x02, 0xFF, 0xEE, 0, 0}, raw)
	require.Equal(t, regs, unpackRegisters(raw))

	_, err := Dial(Config{})
	require.ErrorIs(t, err, errEndpointRequired)
}
