package hardware

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/oshokin/tempmon/internal/service/output"
)

// SerialPorts drives an IO board that accepts one text command per line:
//
//	SET <output> <0|1>
//	BLINK <output> <on ms> <off ms>
//	STOP <output>
type SerialPorts struct {
	// mu serializes commands on the link.
	mu sync.Mutex
	// link is the serial connection.
	link io.WriteCloser
}

// OpenSerial opens the IO board link.
func OpenSerial(portName string, baudRate int) (*SerialPorts, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}

	return NewSerialPorts(port), nil
}

// NewSerialPorts wraps an already open link.
func NewSerialPorts(link io.WriteCloser) *SerialPorts {
	return &SerialPorts{link: link}
}

// Write switches an output solid on or off.
func (p *SerialPorts) Write(_ context.Context, name output.Name, on bool) error {
	state := 0
	if on {
		state = 1
	}

	return p.send("SET %s %d\n", name, state)
}

// StartBlink starts a blink on an output.
func (p *SerialPorts) StartBlink(_ context.Context, name output.Name, on, off time.Duration) error {
	return p.send("BLINK %s %d %d\n", name, on.Milliseconds(), off.Milliseconds())
}

// StopBlink stops a blink.
func (p *SerialPorts) StopBlink(_ context.Context, name output.Name) error {
	return p.send("STOP %s\n", name)
}

// Close closes the link.
func (p *SerialPorts) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.link.Close()
}

func (p *SerialPorts) send(format string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := fmt.Fprintf(p.link, format, args...); err != nil {
		return fmt.Errorf("send IO board command: %w", err)
	}

	return nil
}
