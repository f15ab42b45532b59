package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/oshokin/tempmon/internal/config"
	"github.com/oshokin/tempmon/internal/domain/alarm"
	"github.com/oshokin/tempmon/internal/domain/point"
	"github.com/oshokin/tempmon/internal/hardware"
	"github.com/oshokin/tempmon/internal/logger"
	"github.com/oshokin/tempmon/internal/modbus"
	"github.com/oshokin/tempmon/internal/observability/metrics"
	"github.com/oshokin/tempmon/internal/repository/eventlog"
	"github.com/oshokin/tempmon/internal/repository/events"
	"github.com/oshokin/tempmon/internal/repository/state"
	"github.com/oshokin/tempmon/internal/sensor"
	"github.com/oshokin/tempmon/internal/service/display"
	"github.com/oshokin/tempmon/internal/service/output"
	"github.com/oshokin/tempmon/internal/service/registry"
)

// errModbusEndpointRequired is returned when a Modbus sensor is configured without an endpoint.
var errModbusEndpointRequired = errors.New("modbus sensors need modbus.endpoint")

// resources are the collaborators opened from the configuration.
type resources struct {
	// deps feed New.
	deps Dependencies
	// closers release files and connections, in reverse order of opening.
	closers []func() error
}

// close releases every opened resource and joins the errors.
func (r *resources) close() error {
	var errs []error

	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// build opens every collaborator described by the configuration.
// On error everything opened so far is closed.
func build(ctx context.Context, cfg *config.Config, configPath string) (_ *resources, err error) {
	res := new(resources)

	defer func() {
		if err != nil {
			_ = res.close()
		}
	}()

	var inputs sensor.InputReader

	if cfg.Modbus.Endpoint != "" {
		modbusClient, dialErr := modbus.Dial(modbus.Config{
			Endpoint: cfg.Modbus.Endpoint,
			UnitID:   cfg.Modbus.UnitID,
			Timeout:  cfg.Modbus.Timeout,
		})
		if dialErr != nil {
			return nil, fmt.Errorf("connect modbus: %w", dialErr)
		}

		inputs = modbusClient
		res.closers = append(res.closers, modbusClient.Close)
		res.deps.Publisher = modbus.NewPublisher(modbusClient, modbusClient,
			cfg.Modbus.BaseRegister, cfg.Modbus.RelayCommandRegister)
	}

	points, err := buildPoints(cfg.Points, inputs)
	if err != nil {
		return nil, err
	}

	sinks := alarm.MultiSink{alarm.NewLogSink(), metrics.NewSink()}

	if path := cfg.Storage.EventDatabase; path != "" {
		store, openErr := events.Open(ctx, path)
		if openErr != nil {
			return nil, openErr
		}

		res.closers = append(res.closers, store.Close)
		res.deps.History = store
		sinks = append(sinks, store)
	}

	if pattern := cfg.Storage.EventLog; pattern != "" {
		csvLog, openErr := eventlog.Open(pattern, cfg.Storage.EventLogMaxAge, cfg.Storage.EventLogRotation)
		if openErr != nil {
			return nil, openErr
		}

		res.closers = append(res.closers, csvLog.Close)
		sinks = append(sinks, csvLog)
	}

	reg := registry.New(points,
		registry.WithSink(sinks),
		registry.WithInterval(cfg.AlarmInterval),
		registry.WithAcknowledgedDelays(cfg.AcknowledgedDelayMinutes.Delays()),
		registry.WithClearDelay(cfg.ClearDelay),
	)

	if err = seedAlarms(ctx, reg, cfg); err != nil {
		return nil, err
	}

	ports, closePorts, err := buildPorts(cfg.Hardware)
	if err != nil {
		return nil, err
	}

	if closePorts != nil {
		res.closers = append(res.closers, closePorts)
	}

	if cfg.Storage.StateFile != "" {
		res.deps.RelayState = state.NewFileRepository(cfg.Storage.StateFile)
	}

	res.deps.Points = points
	res.deps.Registry = reg
	res.deps.Ports = ports
	res.deps.Renderer = buildRenderer(cfg.Display.Renderer)
	res.deps.Display = display.Options{
		RotationInterval: cfg.Display.RotationInterval,
		OKWindow:         cfg.Display.OKWindow,
	}
	res.deps.AlarmStore = &configStore{path: configPath, cfg: cfg}
	res.deps.DeviceName = cfg.DeviceName
	res.deps.ListenAddress = cfg.ListenAddress
	res.deps.MeasurementInterval = cfg.MeasurementInterval
	res.deps.PublishInterval = cfg.Modbus.PublishInterval

	return res, nil
}

// buildPoints applies names, thresholds and sensors to the point table.
func buildPoints(configured []config.Point, reader sensor.InputReader) (*point.Table, error) {
	points := point.NewTable()

	for _, cp := range configured {
		p, err := points.Get(cp.Address)
		if err != nil {
			return nil, err
		}

		if cp.Name != "" {
			p.SetName(cp.Name)
		}

		low, high := p.LowThreshold(), p.HighThreshold()
		if cp.LowThreshold != nil {
			low = *cp.LowThreshold
		}

		if cp.HighThreshold != nil {
			high = *cp.HighThreshold
		}

		p.SetThresholds(low, high)

		if cp.Sensor == nil {
			continue
		}

		switch cp.Sensor.Kind {
		case config.SensorModbus:
			if reader == nil {
				return nil, fmt.Errorf("point %d: %w", cp.Address, errModbusEndpointRequired)
			}

			p.Bind(sensor.NewModbus(cp.Sensor.ID, p.Kind(), reader, cp.Sensor.Register, cp.Sensor.Scale))
		default:
			p.Bind(sensor.NewSimulated(cp.Sensor.ID, p.Kind(), cp.Sensor.Value))
		}
	}

	return points, nil
}

// seedAlarms creates the default alarms of every configured point, except
// the ones removed at runtime, then applies the configured alarms on top.
func seedAlarms(ctx context.Context, reg *registry.Registry, cfg *config.Config) error {
	removed := make([]alarm.Key, 0, len(cfg.RemovedAlarms))
	for _, key := range cfg.RemovedAlarms {
		removed = append(removed, alarm.Key(key))
	}

	for _, cp := range cfg.Points {
		if err := reg.EnsureAlarmsForPoint(ctx, cp.Address, removed...); err != nil {
			return err
		}
	}

	for _, ca := range cfg.Alarms {
		t, address, err := alarm.ParseKey(ca.Key)
		if err != nil {
			return err
		}

		priority, err := alarm.ParsePriority(ca.Priority)
		if err != nil {
			return err
		}

		a, err := reg.AddAlarm(ctx, t, address, priority)
		if err != nil {
			return err
		}

		if err = reg.UpdateAlarm(ctx, a.Key(), priority, ca.IsEnabled()); err != nil {
			return err
		}

		if err = reg.SetHysteresis(ctx, a.Key(), ca.Hysteresis); err != nil {
			return err
		}
	}

	return nil
}

// buildPorts opens the output driver. The returned closer may be nil.
func buildPorts(hw config.Hardware) (output.Ports, func() error, error) {
	if hw.Kind != config.HardwareSerial {
		return hardware.NewLogPorts(), nil, nil
	}

	ports, err := hardware.OpenSerial(hw.SerialPort, hw.BaudRate)
	if err != nil {
		return nil, nil, err
	}

	return ports, ports.Close, nil
}

func buildRenderer(kind string) display.Renderer {
	if kind == config.RendererTerminal {
		return display.NewTerminalRenderer(os.Stdout)
	}

	return display.NewLogRenderer()
}

// configStore writes alarm changes back to the YAML configuration.
type configStore struct {
	// path is the configuration file.
	path string
	// cfg is the configuration the monitor was started with.
	cfg *config.Config
}

// SaveAlarms replaces the alarm section of the configuration file.
// Default alarms of configured points that are missing from alarms are
// recorded as removed so the next start does not recreate them.
func (s *configStore) SaveAlarms(ctx context.Context, alarms []alarm.Snapshot) error {
	configured := make([]config.Alarm, 0, len(alarms))
	present := make(map[alarm.Key]struct{}, len(alarms))

	for _, a := range alarms {
		present[a.Key] = struct{}{}

		enabled := a.Enabled
		configured = append(configured, config.Alarm{
			Key:        a.Key.String(),
			Priority:   a.Priority.String(),
			Enabled:    &enabled,
			Hysteresis: a.Hysteresis,
		})
	}

	var removed []string

	for _, cp := range s.cfg.Points {
		for _, t := range registry.DefaultAlarmTypes() {
			key := alarm.NewKey(t, cp.Address)
			if _, ok := present[key]; !ok {
				removed = append(removed, key.String())
			}
		}
	}

	s.cfg.Alarms = configured
	s.cfg.RemovedAlarms = removed

	if err := config.Save(s.path, s.cfg); err != nil {
		return fmt.Errorf("save alarms: %w", err)
	}

	logger.DebugKV(ctx, "Alarm configuration saved", "path", s.path, "alarms", len(configured), "removed", len(removed))

	return nil
}

// SaveAcknowledgedDelays rewrites the per-tier acknowledgment timeouts.
func (s *configStore) SaveAcknowledgedDelays(ctx context.Context, delays alarm.AcknowledgedDelays) error {
	s.cfg.AcknowledgedDelayMinutes = config.DelayMinutes(delays)

	if err := config.Save(s.path, s.cfg); err != nil {
		return fmt.Errorf("save acknowledged delays: %w", err)
	}

	logger.DebugKV(ctx, "Acknowledged delays saved", "path", s.path)

	return nil
}
