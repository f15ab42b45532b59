package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/tempmon/internal/domain/alarm"
)

func intPtr(v int) *int { return &v }

// TestValidateDefaults checks that an empty configuration is completed with defaults.
func TestValidateDefaults(t *testing.T) {
	t.Parallel()

	cfg := new(Config)
	require.NoError(t, Validate(cfg))

	require.Equal(t, DefaultListenAddress, cfg.ListenAddress)
	require.Equal(t, DefaultTickInterval, cfg.TickInterval)
	require.Equal(t, time.Second, cfg.AlarmInterval)
	require.Equal(t, 10*time.Second, cfg.ClearDelay)
	require.Equal(t, alarm.DefaultAcknowledgedDelays(), cfg.AcknowledgedDelayMinutes.Delays())
	require.Equal(t, 15*time.Second, cfg.Display.RotationInterval)
	require.Equal(t, time.Minute, cfg.Display.OKWindow)
	require.Equal(t, RendererLog, cfg.Display.Renderer)
	require.Equal(t, HardwareLog, cfg.Hardware.Kind)
	require.Equal(t, byte(1), cfg.Modbus.UnitID)
	require.Equal(t, uint16(DefaultRelayCommandRegister), cfg.Modbus.RelayCommandRegister)

	require.Equal(t, cfg, Default())
	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)
}

// TestValidateRejects checks range and kind validations.
func TestValidateRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"bad log level", Config{LogLevel: "chatty"}, errInvalidLogLevel},
		{"bad renderer", Config{Display: Display{Renderer: "lcd"}}, errUnknownKind},
		{"serial without port", Config{Hardware: Hardware{Kind: HardwareSerial}}, errSerialPortRequired},
		{"point out of range", Config{Points: []Point{{Address: 60}}}, errInvalidAddress},
		{"duplicate point", Config{Points: []Point{{Address: 1}, {Address: 1}}}, errDuplicate},
		{
			"inverted thresholds",
			Config{Points: []Point{{Address: 1, LowThreshold: intPtr(60)}}},
			errInvalidThresholds,
		},
		{
			"unknown sensor",
			Config{Points: []Point{{Address: 1, Sensor: &Sensor{Kind: "thermocouple"}}}},
			errUnknownKind,
		},
		{"bad alarm key", Config{Alarms: []Alarm{{Key: "alarm_1", Priority: "LOW"}}}, alarm.ErrInvalidKey},
		{"alarm out of range", Config{Alarms: []Alarm{{Key: "alarm_75_0", Priority: "LOW"}}}, errInvalidAddress},
		{"bad removed alarm key", Config{RemovedAlarms: []string{"alarm_x_2"}}, alarm.ErrInvalidKey},
		{"bad priority", Config{Alarms: []Alarm{{Key: "alarm_1_0", Priority: "URGENT"}}}, alarm.ErrInvalidPriority},
		{
			"duplicate alarm across key forms",
			Config{Alarms: []Alarm{{Key: "alarm_1_0", Priority: "LOW"}, {Key: "P1_HIGH", Priority: "LOW"}}},
			errDuplicate,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := tc.cfg
			require.ErrorIs(t, Validate(&cfg), tc.want)
		})
	}

	require.Error(t, Validate(&Config{ListenAddress: "bad:address"}))
}

// TestValidateMigratesLegacyKeys checks that legacy keys are rewritten canonically.
func TestValidateMigratesLegacyKeys(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Alarms: []Alarm{
			{Key: "P5_HIGH_TEMPERATURE", Priority: "high"},
			{Key: "P5_DISCONNECTED", Priority: "critical"},
		},
		RemovedAlarms: []string{"P7_SENSOR_ERROR"},
	}

	require.NoError(t, Validate(cfg))
	require.Equal(t, []string{"alarm_7_2"}, cfg.RemovedAlarms)
	require.Equal(t, "alarm_5_0", cfg.Alarms[0].Key)
	require.Equal(t, "HIGH", cfg.Alarms[0].Priority)
	require.Equal(t, "alarm_5_3", cfg.Alarms[1].Key)
	require.True(t, cfg.Alarms[1].IsEnabled())
}

// TestDelayMinutes checks the conversion between minutes and durations.
func TestDelayMinutes(t *testing.T) {
	t.Parallel()

	minutes := AcknowledgedDelayMinutes{Critical: 2, High: 10, Medium: 45, Low: 240}
	require.Equal(t, minutes, DelayMinutes(minutes.Delays()))
	require.Equal(t, 4*time.Hour, minutes.Delays().Low)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tempmon.yaml")
	disabled := false

	cfg := &Config{
		DeviceName:    "boiler-room",
		ListenAddress: "127.0.0.1:50051",
		Points: []Point{
			{
				Address:       5,
				Name:          "Boiler",
				HighThreshold: intPtr(80),
				Sensor:        &Sensor{Kind: "Simulated", ID: "28-00000a", Value: 21.5},
			},
		},
		Alarms: []Alarm{
			{Key: "alarm_5_0", Priority: "CRITICAL", Hysteresis: 2},
			{Key: "alarm_5_1", Priority: "LOW", Enabled: &disabled},
		},
		RemovedAlarms: []string{"alarm_5_2"},
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
	require.Equal(t, SensorSimulated, loaded.Points[0].Sensor.Kind)
	require.False(t, loaded.Alarms[1].IsEnabled())

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	require.ErrorIs(t, Save(path, nil), errConfigIsNotSet)
}

// TestClientAddress checks how CLI commands derive the dial address.
func TestClientAddress(t *testing.T) {
	t.Parallel()

	cfg := &Config{ListenAddress: ":50051"}
	require.Equal(t, "127.0.0.1:50051", cfg.ClientAddress(""))
	require.Equal(t, "10.0.0.2:1", cfg.ClientAddress("10.0.0.2:1"))

	cfg.ListenAddress = "192.168.1.10:50051"
	require.Equal(t, "192.168.1.10:50051", cfg.ClientAddress(""))
}
