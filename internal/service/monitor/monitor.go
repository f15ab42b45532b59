package monitor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	api "github.com/oshokin/tempmon/internal/api/grpc/alarm"
	"github.com/oshokin/tempmon/internal/domain/alarm"
	"github.com/oshokin/tempmon/internal/domain/point"
	"github.com/oshokin/tempmon/internal/logger"
	"github.com/oshokin/tempmon/internal/modbus"
	"github.com/oshokin/tempmon/internal/observability/metrics"
	"github.com/oshokin/tempmon/internal/repository/events"
	"github.com/oshokin/tempmon/internal/repository/state"
	"github.com/oshokin/tempmon/internal/service/display"
	"github.com/oshokin/tempmon/internal/service/output"
	"github.com/oshokin/tempmon/internal/service/registry"
	"github.com/oshokin/tempmon/internal/version"
)

// Publisher exposes the monitor state over Modbus and reads the Relay3 command.
type Publisher interface {
	Publish(ctx context.Context, s modbus.State) error
	RelayCommand(ctx context.Context) (output.Mode, error)
}

// History returns the newest stored alarm events.
type History interface {
	Recent(ctx context.Context, limit int) ([]events.Entry, error)
}

// AlarmStore persists the alarm configuration after an API change.
type AlarmStore interface {
	SaveAlarms(ctx context.Context, alarms []alarm.Snapshot) error
	SaveAcknowledgedDelays(ctx context.Context, delays alarm.AcknowledgedDelays) error
}

// Dependencies are the collaborators of a Monitor. Optional ones may be nil.
type Dependencies struct {
	// Clock drives every timer; defaults to the system clock.
	Clock alarm.Clock
	// Points is the measurement point table.
	Points *point.Table
	// Registry owns the alarms.
	Registry *registry.Registry
	// Ports drives the relays and LEDs.
	Ports output.Ports
	// Renderer shows the display frames.
	Renderer display.Renderer
	// Display configures the display selector.
	Display display.Options
	// Publisher exposes the registers over Modbus (optional).
	Publisher Publisher
	// History serves the History API (optional).
	History History
	// RelayState keeps manual relay modes across restarts (optional).
	RelayState state.Repository
	// AlarmStore persists alarm configuration changes (optional).
	AlarmStore AlarmStore
	// DeviceName and ListenAddress are shown on the status screen.
	DeviceName    string
	ListenAddress string
	// MeasurementInterval is how often sensors are read.
	MeasurementInterval time.Duration
	// PublishInterval is how often the Modbus registers are written.
	PublishInterval time.Duration
}

// Monitor is the tick controller of the device.
type Monitor struct {
	// mu serializes the tick with API calls.
	mu sync.Mutex

	clock      alarm.Clock
	points     *point.Table
	registry   *registry.Registry
	arbitrator *output.Arbitrator
	selector   *display.Selector
	renderer   display.Renderer
	publisher  Publisher
	history    History
	relayState state.Repository
	alarmStore AlarmStore

	// deviceName and listenAddress feed the status screen.
	deviceName    string
	listenAddress string
	// started is when the monitor was created.
	started time.Time

	measurementInterval time.Duration
	publishInterval     time.Duration
	// lastMeasurement and lastPublish are zero until the first run.
	lastMeasurement time.Time
	lastPublish     time.Time
	// relayCommand is the last value read from the Modbus command register.
	relayCommand *output.Mode
}

// Compile-time check that Monitor serves the gRPC API.
var _ api.Service = (*Monitor)(nil)

var (
	// errPointsRequired is returned when no point table is provided.
	errPointsRequired = errors.New("point table must be provided")
	// errRegistryRequired is returned when no registry is provided.
	errRegistryRequired = errors.New("alarm registry must be provided")
	// errPortsRequired is returned when no output driver is provided.
	errPortsRequired = errors.New("output ports must be provided")
)

// New creates a monitor from its collaborators.
func New(deps Dependencies) (*Monitor, error) {
	switch {
	case deps.Points == nil:
		return nil, errPointsRequired
	case deps.Registry == nil:
		return nil, errRegistryRequired
	case deps.Ports == nil:
		return nil, errPortsRequired
	}

	if deps.Clock == nil {
		deps.Clock = alarm.SystemClock{}
	}

	if deps.Renderer == nil {
		deps.Renderer = display.NewLogRenderer()
	}

	m := &Monitor{
		clock:               deps.Clock,
		points:              deps.Points,
		registry:            deps.Registry,
		arbitrator:          output.NewArbitrator(deps.Ports),
		renderer:            deps.Renderer,
		publisher:           deps.Publisher,
		history:             deps.History,
		relayState:          deps.RelayState,
		alarmStore:          deps.AlarmStore,
		deviceName:          deps.DeviceName,
		listenAddress:       deps.ListenAddress,
		started:             deps.Clock.Now(),
		measurementInterval: deps.MeasurementInterval,
		publishInterval:     deps.PublishInterval,
	}

	m.selector = display.NewSelector(deps.Clock, m.systemInfo, deps.Display)

	return m, nil
}

// RestoreRelayModes loads the persisted manual relay modes.
// A missing state file is not an error.
func (m *Monitor) RestoreRelayModes(ctx context.Context) error {
	if m.relayState == nil {
		return nil
	}

	saved, err := m.relayState.Load(ctx)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil
		}

		return fmt.Errorf("load relay state: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for name, value := range saved.Modes {
		mode, parseErr := output.ParseMode(value)
		if parseErr != nil {
			logger.WarnKV(ctx, "Ignoring saved relay mode", "relay", name, "mode", value, "error", parseErr)

			continue
		}

		if err = m.arbitrator.SetMode(ctx, output.Name(name), mode); err != nil {
			logger.WarnKV(ctx, "Ignoring saved relay mode", "relay", name, "mode", value, "error", err)
		}
	}

	logger.InfoKV(ctx, "Relay modes restored", "changed_by", saved.Actor, "changed_at", saved.Timestamp)

	return nil
}

// Loop ticks every interval until the context is canceled.
func (m *Monitor) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Monitor loop stopped")
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one monitor cycle. Collaborator failures are logged and retried
// on the next tick; they never stop the cycle.
func (m *Monitor) Tick(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	started := time.Now()
	now := m.clock.Now()

	if due(m.lastMeasurement, now, m.measurementInterval) {
		m.lastMeasurement = now
		m.measure(ctx)
	}

	m.registry.Update(ctx)

	summary := m.registry.Summary()
	metrics.SetAlarmCounts(summary)

	// Failures are logged by the arbitrator and retried next tick.
	_ = m.arbitrator.Apply(ctx, output.Compute(summary))
	metrics.SetOutputs(m.arbitrator.State())

	m.render(ctx)

	if m.publisher != nil && due(m.lastPublish, now, m.publishInterval) {
		m.lastPublish = now
		m.publish(ctx, summary)
	}

	metrics.ObserveTick(time.Since(started))
}

// measure reads every bound sensor and refreshes the point alarm bits.
func (m *Monitor) measure(ctx context.Context) {
	for _, p := range m.points.All() {
		if err := p.Update(ctx); err != nil {
			metrics.IncSensorError(strconv.Itoa(p.Address()))
			logger.DebugKV(ctx, "Sensor read failed", "point", p.Address(), "error", err)
		}

		p.RefreshAlarmStatus()
	}
}

// render selects and draws the display frame.
func (m *Monitor) render(ctx context.Context) {
	active := alarm.Snapshots(m.registry.AlarmsInStage(alarm.StageActive))
	acknowledged := alarm.Snapshots(m.registry.AcknowledgedAlarms())

	frame := m.selector.Select(active, acknowledged)
	if err := m.renderer.Render(ctx, frame); err != nil {
		logger.WarnKV(ctx, "Display render failed", "error", err)
	}
}

// publish writes the register map and applies a changed Relay3 command.
func (m *Monitor) publish(ctx context.Context, summary alarm.Summary) {
	err := m.publisher.Publish(ctx, modbus.State{
		Points:  m.points.All(),
		Summary: summary,
		Outputs: m.arbitrator.State(),
		Modes:   m.arbitrator.Modes(),
	})
	if err != nil {
		logger.WarnKV(ctx, "Modbus publish failed", "error", err)
	}

	command, err := m.publisher.RelayCommand(ctx)
	if err != nil {
		logger.WarnKV(ctx, "Modbus relay command read failed", "error", err)

		return
	}

	previous := m.relayCommand
	m.relayCommand = &command

	// Only a change of the register is a command; the first AUTO read is the baseline.
	if (previous != nil && *previous == command) || (previous == nil && command == output.Auto) {
		return
	}

	logger.InfoKV(ctx, "Relay command received over Modbus", "relay", output.Relay3, "mode", command.String())

	if err = m.setRelayMode(ctx, output.Relay3, command); err != nil {
		logger.WarnKV(ctx, "Relay command failed", "error", err)
	}
}

// setRelayMode changes a relay mode, drives the outputs and saves the modes.
func (m *Monitor) setRelayMode(ctx context.Context, name output.Name, mode output.Mode) error {
	if err := m.arbitrator.SetMode(ctx, name, mode); err != nil {
		return err
	}

	if err := m.arbitrator.Reapply(ctx); err != nil {
		logger.WarnKV(ctx, "Relay write failed, retrying next tick", "relay", name, "error", err)
	}

	m.saveRelayModes(ctx)

	return nil
}

func (m *Monitor) saveRelayModes(ctx context.Context) {
	if m.relayState == nil {
		return
	}

	modes := make(map[string]string)
	for name, mode := range m.arbitrator.Modes() {
		modes[string(name)] = mode.String()
	}

	err := m.relayState.Save(ctx, &state.RelayState{
		Timestamp: m.clock.Now(),
		Actor:     api.ActorFromContext(ctx),
		Modes:     modes,
	})
	if err != nil {
		logger.ErrorKV(ctx, "Failed to persist relay modes", "error", err)
	}
}

// saveAlarms persists the alarm configuration. Failures are logged only:
// the running configuration stays authoritative.
func (m *Monitor) saveAlarms(ctx context.Context) {
	if m.alarmStore == nil {
		return
	}

	if err := m.alarmStore.SaveAlarms(ctx, alarm.Snapshots(m.registry.Alarms())); err != nil {
		logger.ErrorKV(ctx, "Failed to persist alarm configuration", "error", err)
	}
}

// systemInfo feeds the status screen. It runs inside Tick, under the lock.
func (m *Monitor) systemInfo() display.SystemInfo {
	return display.SystemInfo{
		DeviceName:    m.deviceName,
		Version:       version.Short(),
		ListenAddress: m.listenAddress,
		BoundSensors:  m.points.Bound(),
		Alarms:        m.registry.Len(),
		Uptime:        m.clock.Now().Sub(m.started).Truncate(time.Second),
	}
}

// due reports whether interval has elapsed since last; a zero last is always due.
func due(last, now time.Time, interval time.Duration) bool {
	return last.IsZero() || now.Sub(last) >= interval
}
