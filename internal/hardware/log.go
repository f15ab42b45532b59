package hardware

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/oshokin/tempmon/internal/logger"
	"github.com/oshokin/tempmon/internal/service/output"
)

// LogPorts logs every request and keeps the resulting signal per output.
type LogPorts struct {
	// mu guards state.
	mu sync.Mutex
	// state is the last requested signal of each output.
	state map[output.Name]output.Signal
}

// NewLogPorts creates ports with every output unknown.
func NewLogPorts() *LogPorts {
	return &LogPorts{state: make(map[output.Name]output.Signal)}
}

// Write records a solid state.
func (p *LogPorts) Write(ctx context.Context, name output.Name, on bool) error {
	p.set(name, output.Signal{On: on})
	logger.DebugKV(ctx, "Port write", "output", name, "on", on)

	return nil
}

// StartBlink records a blink.
func (p *LogPorts) StartBlink(ctx context.Context, name output.Name, on, off time.Duration) error {
	p.set(name, output.Blink(on, off))
	logger.DebugKV(ctx, "Port blink started", "output", name, "on", on.String(), "off", off.String())

	return nil
}

// StopBlink records a stopped blink.
func (p *LogPorts) StopBlink(ctx context.Context, name output.Name) error {
	p.set(name, output.Off)
	logger.DebugKV(ctx, "Port blink stopped", "output", name)

	return nil
}

// State returns a copy of the recorded signals.
func (p *LogPorts) State() map[output.Name]output.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()

	return maps.Clone(p.state)
}

func (p *LogPorts) set(name output.Name, s output.Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state[name] = s
}
