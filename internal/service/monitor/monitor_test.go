package monitor

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	api "github.com/oshokin/tempmon/internal/api/grpc/alarm"
	"github.com/oshokin/tempmon/internal/config"
	"github.com/oshokin/tempmon/internal/domain/alarm"
	"github.com/oshokin/tempmon/internal/domain/point"
	"github.com/oshokin/tempmon/internal/hardware"
	"github.com/oshokin/tempmon/internal/modbus"
	"github.com/oshokin/tempmon/internal/repository/state"
	"github.com/oshokin/tempmon/internal/sensor"
	"github.com/oshokin/tempmon/internal/service/display"
	"github.com/oshokin/tempmon/internal/service/output"
	"github.com/oshokin/tempmon/internal/service/registry"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	// now is the current fake time.
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// lastFrame keeps the most recent rendered frame.
type lastFrame struct {
	// frame is the last frame rendered.
	frame display.Frame
}

func (r *lastFrame) Render(_ context.Context, f display.Frame) error {
	r.frame = f

	return nil
}

// fakePublisher records published states and replays relay commands.
type fakePublisher struct {
	// states holds every published state.
	states []modbus.State
	// commands are returned by RelayCommand in order; the last one repeats.
	commands []output.Mode
}

func (p *fakePublisher) Publish(_ context.Context, s modbus.State) error {
	p.states = append(p.states, s)

	return nil
}

func (p *fakePublisher) RelayCommand(context.Context) (output.Mode, error) {
	command := p.commands[0]
	if len(p.commands) > 1 {
		p.commands = p.commands[1:]
	}

	return command, nil
}

// memoryAlarmStore records saved alarm configurations.
type memoryAlarmStore struct {
	// saved holds every SaveAlarms call.
	saved [][]alarm.Snapshot
	// delays holds every SaveAcknowledgedDelays call.
	delays []alarm.AcknowledgedDelays
}

func (s *memoryAlarmStore) SaveAlarms(_ context.Context, alarms []alarm.Snapshot) error {
	s.saved = append(s.saved, alarms)

	return nil
}

func (s *memoryAlarmStore) SaveAcknowledgedDelays(_ context.Context, delays alarm.AcknowledgedDelays) error {
	s.delays = append(s.delays, delays)

	return nil
}

// fixture is a monitor with one simulated sensor on point 5 and a HIGH
// priority high-temperature alarm at 50 °C.
type fixture struct {
	clock    *fakeClock
	sim      *sensor.Simulated
	ports    *hardware.LogPorts
	renderer *lastFrame
	store    *memoryAlarmStore
	monitor  *Monitor
}

func newFixture(t *testing.T, mutate func(*Dependencies)) *fixture {
	t.Helper()

	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}

	points := point.NewTable()
	p, err := points.Get(5)
	require.NoError(t, err)

	sim := sensor.NewSimulated("28-000005", p.Kind(), 20)
	p.SetThresholds(10, 50)
	p.Bind(sim)

	reg := registry.New(points, registry.WithClock(clock), registry.WithSink(alarm.NewLogSink()))
	_, err = reg.AddAlarm(ctx, alarm.TypeHighTemperature, 5, alarm.PriorityHigh)
	require.NoError(t, err)

	f := &fixture{
		clock:    clock,
		sim:      sim,
		ports:    hardware.NewLogPorts(),
		renderer: new(lastFrame),
		store:    new(memoryAlarmStore),
	}

	deps := Dependencies{
		Clock:               clock,
		Points:              points,
		Registry:            reg,
		Ports:               f.ports,
		Renderer:            f.renderer,
		AlarmStore:          f.store,
		DeviceName:          "tempmon",
		MeasurementInterval: time.Second,
	}

	if mutate != nil {
		mutate(&deps)
	}

	f.monitor, err = New(deps)
	require.NoError(t, err)

	return f
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(Dependencies{})
	require.ErrorIs(t, err, errPointsRequired)

	_, err = New(Dependencies{Points: point.NewTable()})
	require.ErrorIs(t, err, errRegistryRequired)

	points := point.NewTable()
	_, err = New(Dependencies{Points: points, Registry: registry.New(points)})
	require.ErrorIs(t, err, errPortsRequired)
}

func TestTickDrivesOutputsThroughTheAlarmLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, nil)

	f.monitor.Tick(ctx)
	require.Equal(t, output.Solid, f.ports.State()[output.GreenLED])
	require.Equal(t, display.ScreenOK, f.renderer.frame.Screen)

	// The sensor heats up past the threshold.
	f.sim.Set(55)
	f.clock.Advance(time.Second)
	f.monitor.Tick(ctx)

	state := f.ports.State()
	require.Equal(t, output.Solid, state[output.Relay1])
	require.Equal(t, output.Solid, state[output.Relay2])
	require.Equal(t, output.Solid, state[output.YellowLED])
	require.Equal(t, output.Off, state[output.GreenLED])
	require.Equal(t, display.ScreenActive, f.renderer.frame.Screen)

	require.Equal(t, 1, f.monitor.AcknowledgeAll(ctx))
	f.monitor.Tick(ctx)

	state = f.ports.State()
	require.Equal(t, output.Off, state[output.Relay1], "the siren stops once acknowledged")
	require.Equal(t, output.Blink(output.BeaconBlinkOn, output.BeaconBlinkOff), state[output.Relay2])
	require.Equal(t, display.ScreenAcknowledged, f.renderer.frame.Screen)

	// Back to normal: CLEARED, then RESOLVED after the clear delay.
	f.sim.Set(20)
	f.clock.Advance(time.Second)
	f.monitor.Tick(ctx)

	alarms, summary := f.monitor.Alarms(ctx)
	require.Len(t, alarms, 1)
	require.Equal(t, alarm.StageCleared, alarms[0].Stage)
	require.Zero(t, summary.ActiveTotal()+summary.AcknowledgedTotal())
	require.Equal(t, output.Solid, f.ports.State()[output.GreenLED])

	f.clock.Advance(alarm.DefaultClearDelay)
	f.monitor.Tick(ctx)

	alarms, _ = f.monitor.Alarms(ctx)
	require.Equal(t, alarm.StageResolved, alarms[0].Stage)
}

func TestSensorFailureRaisesNoTemperatureAlarm(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.monitor.AddAlarm(ctx, alarm.TypeSensorError, 5, alarm.PriorityCritical)
	require.NoError(t, err)

	f.sim.Set(90)
	f.sim.Fail(point.ErrSensorDisconnected)
	f.monitor.Tick(ctx)

	alarms, summary := f.monitor.Alarms(ctx)
	require.Len(t, alarms, 2)
	require.Equal(t, alarm.TypeSensorError, alarms[0].Type)
	require.Equal(t, alarm.StageActive, alarms[0].Stage)
	require.Equal(t, alarm.StageResolved, alarms[1].Stage)
	require.Equal(t, 1, summary.Active[alarm.PriorityCritical])
	require.Equal(t, output.Solid, f.ports.State()[output.RedLED])
}

func TestAcknowledgeOperations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, nil)

	f.monitor.Tick(ctx)

	_, ok := f.monitor.AcknowledgeHighest(ctx)
	require.False(t, ok, "a RESOLVED alarm cannot be acknowledged")

	f.sim.Set(60)
	f.clock.Advance(time.Second)
	f.monitor.Tick(ctx)

	key := alarm.NewKey(alarm.TypeHighTemperature, 5)

	snapshot, err := f.monitor.Acknowledge(ctx, key)
	require.NoError(t, err)
	require.Equal(t, alarm.StageAcknowledged, snapshot.Stage)

	_, err = f.monitor.Acknowledge(ctx, key)
	require.ErrorIs(t, err, registry.ErrNotAcknowledgeable)

	_, err = f.monitor.Acknowledge(ctx, alarm.NewKey(alarm.TypeLowTemperature, 5))
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestAlarmConfigurationIsPersisted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, nil)
	key := alarm.NewKey(alarm.TypeHighTemperature, 5)

	disabled := false
	hysteresis := 3

	snapshot, err := f.monitor.UpdateAlarm(ctx, api.AlarmUpdate{Key: key, Enabled: &disabled, Hysteresis: &hysteresis})
	require.NoError(t, err)
	require.False(t, snapshot.Enabled)
	require.Equal(t, alarm.PriorityHigh, snapshot.Priority, "unset fields are kept")
	require.Equal(t, 3, snapshot.Hysteresis)

	_, err = f.monitor.UpdateAlarm(ctx, api.AlarmUpdate{Key: alarm.NewKey(alarm.TypeSensorError, 9)})
	require.ErrorIs(t, err, registry.ErrNotFound)

	_, err = f.monitor.AddAlarm(ctx, alarm.TypeLowTemperature, 5, alarm.PriorityLow)
	require.NoError(t, err)

	require.NoError(t, f.monitor.RemoveAlarm(ctx, key))
	require.ErrorIs(t, f.monitor.RemoveAlarm(ctx, key), registry.ErrNotFound)

	require.Len(t, f.store.saved, 3)
	require.Len(t, f.store.saved[1], 2)
	require.Len(t, f.store.saved[2], 1)
	require.Equal(t, alarm.TypeLowTemperature, f.store.saved[2][0].Type)
}

func TestSetAcknowledgedDelaysUpdatesExistingAlarms(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, nil)

	high, err := f.monitor.registry.Alarm(alarm.NewKey(alarm.TypeHighTemperature, 5))
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, high.AcknowledgedDelay())

	low, err := f.monitor.AddAlarm(ctx, alarm.TypeLowTemperature, 5, alarm.PriorityLow)
	require.NoError(t, err)
	require.Equal(t, time.Hour, low.AcknowledgedDelay)

	highDelay, lowDelay := 2*time.Minute, 3*time.Hour

	delays, err := f.monitor.SetAcknowledgedDelays(ctx, api.DelaysUpdate{High: &highDelay, Low: &lowDelay})
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, delays.Critical)
	require.Equal(t, 2*time.Minute, delays.High)
	require.Equal(t, 30*time.Minute, delays.Medium)
	require.Equal(t, 3*time.Hour, delays.Low)

	require.Equal(t, 2*time.Minute, high.AcknowledgedDelay())

	lowAlarm, err := f.monitor.registry.Alarm(low.Key)
	require.NoError(t, err)
	require.Equal(t, 3*time.Hour, lowAlarm.AcknowledgedDelay())

	require.Equal(t, []alarm.AcknowledgedDelays{delays}, f.store.delays)

	// A rejected update changes nothing.
	zero := time.Duration(0)
	_, err = f.monitor.SetAcknowledgedDelays(ctx, api.DelaysUpdate{Medium: &zero})
	require.ErrorIs(t, err, alarm.ErrInvalidDelay)
	require.Equal(t, delays, f.monitor.registry.AcknowledgedDelays())
	require.Len(t, f.store.delays, 1)

	// The new timeout drives the acknowledged alarm back to ACTIVE.
	f.monitor.Tick(ctx)
	f.sim.Set(60)
	f.clock.Advance(time.Second)
	f.monitor.Tick(ctx)
	require.Equal(t, alarm.StageActive, high.Stage())

	_, err = f.monitor.Acknowledge(ctx, high.Key())
	require.NoError(t, err)

	f.clock.Advance(2*time.Minute + time.Second)
	f.monitor.Tick(ctx)
	require.Equal(t, alarm.StageActive, high.Stage())
}

func TestRemovedDefaultAlarmStaysRemovedAfterRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	configPath := filepath.Join(t.TempDir(), "tempmon.yaml")

	cfg := &config.Config{
		Points: []config.Point{{Address: 5, Sensor: &config.Sensor{Kind: "simulated", ID: "28-000005", Value: 20}}},
	}
	require.NoError(t, config.Validate(cfg))

	res, err := build(ctx, cfg, configPath)
	require.NoError(t, err)
	require.Equal(t, 3, res.deps.Registry.Len())

	m, err := New(res.deps)
	require.NoError(t, err)

	removed := alarm.NewKey(alarm.TypeSensorError, 5)
	require.NoError(t, m.RemoveAlarm(ctx, removed))
	require.NoError(t, res.close())

	saved, err := config.Load(configPath)
	require.NoError(t, err)
	require.Equal(t, []string{removed.String()}, saved.RemovedAlarms)

	res, err = build(ctx, saved, configPath)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, res.close()) })

	require.Equal(t, 2, res.deps.Registry.Len())

	_, err = res.deps.Registry.Alarm(removed)
	require.ErrorIs(t, err, registry.ErrNotFound)

	// Adding the alarm back clears the removal.
	m, err = New(res.deps)
	require.NoError(t, err)

	_, err = m.AddAlarm(ctx, alarm.TypeSensorError, 5, alarm.PriorityHigh)
	require.NoError(t, err)

	saved, err = config.Load(configPath)
	require.NoError(t, err)
	require.Empty(t, saved.RemovedAlarms)
	require.Len(t, saved.Alarms, 3)
}

func TestRelayModesSurviveRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := state.NewFileRepository(filepath.Join(t.TempDir(), "relays.json"))
	withRepo := func(d *Dependencies) { d.RelayState = repo }

	f := newFixture(t, withRepo)
	f.monitor.Tick(ctx)

	require.ErrorIs(t, f.monitor.SetRelayMode(ctx, output.GreenLED, output.ForceOn), output.ErrUnknownRelay)
	require.NoError(t, f.monitor.SetRelayMode(ctx, output.Relay3, output.ForceOn))
	require.Equal(t, output.Solid, f.ports.State()[output.Relay3], "a mode change drives the relay at once")

	restarted := newFixture(t, withRepo)
	require.NoError(t, restarted.monitor.RestoreRelayModes(ctx))

	for _, o := range restarted.monitor.Outputs(ctx) {
		if o.Name == output.Relay3 {
			require.Equal(t, output.ForceOn, o.Mode)
			require.Nil(t, o.Signal, "nothing driven before the first tick")
		}
	}

	// A monitor without a state file starts in AUTO.
	fresh := newFixture(t, nil)
	require.NoError(t, fresh.monitor.RestoreRelayModes(ctx))
	require.Equal(t, output.Auto, fresh.monitor.Outputs(ctx)[2].Mode)
}

func TestModbusRelayCommand(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	publisher := &fakePublisher{commands: []output.Mode{output.Auto, output.ForceOn, output.ForceOn, output.Auto}}
	f := newFixture(t, func(d *Dependencies) { d.Publisher = publisher })

	relay3 := func() output.Mode { return f.monitor.Outputs(ctx)[2].Mode }

	f.monitor.Tick(ctx)
	require.Equal(t, output.Auto, relay3())
	require.Len(t, publisher.states[0].Points, point.MaxPoints)

	f.monitor.Tick(ctx)
	require.Equal(t, output.ForceOn, relay3())
	require.Equal(t, output.Solid, f.ports.State()[output.Relay3])

	// An operator override is not undone by an unchanged register.
	require.NoError(t, f.monitor.SetRelayMode(ctx, output.Relay3, output.Auto))
	f.monitor.Tick(ctx)
	require.Equal(t, output.Auto, relay3())

	f.monitor.Tick(ctx)
	require.Equal(t, output.Auto, relay3())
	require.Len(t, publisher.states, 4)
}

func TestHistoryAndButtons(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.monitor.History(ctx, 10)
	require.ErrorIs(t, err, api.ErrUnavailable)

	f.monitor.PressButton(ctx, true)
	f.monitor.Tick(ctx)
	require.Equal(t, display.ScreenStatus, f.renderer.frame.Screen)
	require.True(t, strings.HasPrefix(f.renderer.frame.Lines[0], "tempmon "))

	f.monitor.PressButton(ctx, true)
	f.monitor.Tick(ctx)
	require.Equal(t, display.ScreenOK, f.renderer.frame.Screen)
}

func TestBuildFromConfiguration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	high := 40
	disabled := false

	cfg := &config.Config{
		Points: []config.Point{
			{
				Address:       5,
				Name:          "Freezer",
				HighThreshold: &high,
				Sensor:        &config.Sensor{Kind: "simulated", ID: "s5", Value: 45},
			},
			{Address: 52},
		},
		Alarms: []config.Alarm{
			{Key: "P5_HIGH_TEMPERATURE", Priority: "critical", Hysteresis: 2},
			{Key: "alarm_52_1", Priority: "low", Enabled: &disabled},
		},
		Storage: config.Storage{
			EventDatabase: filepath.Join(dir, "events.db"),
			EventLog:      filepath.Join(dir, "events-%Y%m%d.csv"),
			StateFile:     filepath.Join(dir, "relays.json"),
		},
	}
	require.NoError(t, config.Validate(cfg))

	configPath := filepath.Join(dir, "tempmon.yaml")

	res, err := build(ctx, cfg, configPath)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, res.close()) })

	require.Equal(t, 6, res.deps.Registry.Len(), "three default alarms per configured point")
	require.NotNil(t, res.deps.History)
	require.NotNil(t, res.deps.RelayState)
	require.Nil(t, res.deps.Publisher)

	freezer, err := res.deps.Points.Get(5)
	require.NoError(t, err)
	require.Equal(t, "Freezer", freezer.Name())
	require.Equal(t, 40, freezer.HighThreshold())
	require.NotNil(t, freezer.Sensor())

	highAlarm, err := res.deps.Registry.Alarm("alarm_5_0")
	require.NoError(t, err)
	require.Equal(t, alarm.PriorityCritical, highAlarm.Priority())
	require.True(t, highAlarm.Enabled())
	require.Equal(t, 2, highAlarm.Hysteresis())
	require.Equal(t, 5*time.Minute, highAlarm.AcknowledgedDelay())

	lowAlarm, err := res.deps.Registry.Alarm("alarm_52_1")
	require.NoError(t, err)
	require.False(t, lowAlarm.Enabled())

	m, err := New(res.deps)
	require.NoError(t, err)

	m.Tick(ctx)
	require.Equal(t, alarm.StageActive, highAlarm.Stage())

	entries, err := m.History(ctx, 100)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	enabled := true
	_, err = m.UpdateAlarm(ctx, api.AlarmUpdate{Key: "alarm_52_1", Enabled: &enabled})
	require.NoError(t, err)

	saved, err := config.Load(configPath)
	require.NoError(t, err)
	require.Len(t, saved.Alarms, 6)

	for _, a := range saved.Alarms {
		if a.Key == "alarm_52_1" {
			require.True(t, a.IsEnabled())
			require.Equal(t, "LOW", a.Priority)
		}
	}

	critical := time.Minute
	_, err = m.SetAcknowledgedDelays(ctx, api.DelaysUpdate{Critical: &critical})
	require.NoError(t, err)
	require.Equal(t, time.Minute, highAlarm.AcknowledgedDelay())

	saved, err = config.Load(configPath)
	require.NoError(t, err)
	require.Equal(t, 1, saved.AcknowledgedDelayMinutes.Critical)
	require.Equal(t, 15, saved.AcknowledgedDelayMinutes.High)
}

func TestBuildRejectsModbusSensorWithoutEndpoint(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Points: []config.Point{{Address: 1, Sensor: &config.Sensor{Kind: "modbus", ID: "m1", Register: 10}}},
	}
	require.NoError(t, config.Validate(cfg))

	_, err := build(context.Background(), cfg, filepath.Join(t.TempDir(), "tempmon.yaml"))
	require.ErrorIs(t, err, errModbusEndpointRequired)
}
