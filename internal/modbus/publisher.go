package modbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/tempmon/internal/logger"
	"github.com/oshokin/tempmon/internal/service/output"
)

// maxWriteRegisters is the largest Write Multiple Registers request.
const maxWriteRegisters = 123

// RelayCommand values written by a Modbus master into the command register.
const (
	RelayCommandAuto uint16 = 0
	RelayCommandOn   uint16 = 1
	RelayCommandOff  uint16 = 2
)

// errInvalidRelayCommand is returned for unknown command register values.
var errInvalidRelayCommand = errors.New("invalid relay command")

// RegisterWriter writes holding registers.
type RegisterWriter interface {
	WriteRegisters(addr uint16, regs []uint16) error
}

// RegisterReader reads holding registers.
type RegisterReader interface {
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error)
}

// Publisher writes the register map and reads the Relay3 command register.
type Publisher struct {
	// writer receives the register map.
	writer RegisterWriter
	// reader polls the command register; nil disables commands.
	reader RegisterReader
	// base is the first register of the map.
	base uint16
	// commandRegister is the Relay3 command register.
	commandRegister uint16
}

// NewPublisher creates a publisher writing the map at base.
func NewPublisher(writer RegisterWriter, reader RegisterReader, base, commandRegister uint16) *Publisher {
	return &Publisher{
		writer:          writer,
		reader:          reader,
		base:            base,
		commandRegister: commandRegister,
	}
}

// Publish writes the whole register map in request-sized chunks.
func (p *Publisher) Publish(ctx context.Context, s State) error {
	regs := Encode(s)

	for offset := 0; offset < len(regs); offset += maxWriteRegisters {
		end := min(offset+maxWriteRegisters, len(regs))
		addr := p.base + uint16(offset)

		if err := p.writer.WriteRegisters(addr, regs[offset:end]); err != nil {
			return fmt.Errorf("write registers %d..%d: %w", addr, p.base+uint16(end-1), err)
		}
	}

	logger.DebugKV(ctx, "Modbus registers published", "base", p.base, "count", len(regs))

	return nil
}

// RelayCommand reads the Relay3 command register and converts it to a mode.
func (p *Publisher) RelayCommand(context.Context) (output.Mode, error) {
	if p.reader == nil {
		return output.Auto, nil
	}

	regs, err := p.reader.ReadHoldingRegisters(p.commandRegister, 1)
	if err != nil {
		return output.Auto, fmt.Errorf("read relay command: %w", err)
	}

	if len(regs) == 0 {
		return output.Auto, fmt.Errorf("read relay command: empty response: %w", errInvalidRelayCommand)
	}

	switch regs[0] {
	case RelayCommandAuto:
		return output.Auto, nil
	case RelayCommandOn:
		return output.ForceOn, nil
	case RelayCommandOff:
		return output.ForceOff, nil
	default:
		return output.Auto, fmt.Errorf("value %d: %w", regs[0], errInvalidRelayCommand)
	}
}
