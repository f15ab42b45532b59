package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/tempmon/internal/domain/alarm"
	"github.com/oshokin/tempmon/internal/domain/point"
	"github.com/oshokin/tempmon/internal/logger"
)

// Config is the device configuration of the monitor.
type Config struct {
	// DeviceName is shown on the status screen and exported in metrics.
	DeviceName string `yaml:"device_name"`
	// ListenAddress is the gRPC API address.
	ListenAddress string `yaml:"listen_addr"`
	// MetricsAddress is the Prometheus endpoint address; empty disables it.
	MetricsAddress string `yaml:"metrics_addr,omitempty"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Timeout bounds client RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// TickInterval is the period of the monitor loop.
	TickInterval time.Duration `yaml:"tick_interval"`
	// MeasurementInterval is how often the sensors are read.
	MeasurementInterval time.Duration `yaml:"measurement_interval"`
	// AlarmInterval is how often alarms are evaluated.
	AlarmInterval time.Duration `yaml:"alarm_interval"`
	// ClearDelay is the CLEARED dwell before an alarm resolves.
	ClearDelay time.Duration `yaml:"clear_delay"`
	// AcknowledgedDelayMinutes holds the acknowledgment timeout of each priority tier.
	AcknowledgedDelayMinutes AcknowledgedDelayMinutes `yaml:"acknowledged_delay_minutes"`
	// Display configures the front panel.
	Display Display `yaml:"display"`
	// Points configures measurement points; unlisted points keep their defaults.
	Points []Point `yaml:"points,omitempty"`
	// Alarms configures alarms beyond the per-point defaults.
	Alarms []Alarm `yaml:"alarms,omitempty"`
	// RemovedAlarms lists default alarm keys deleted at runtime. They are
	// not recreated when the point's default alarms are seeded.
	RemovedAlarms []string `yaml:"removed_alarms,omitempty"`
	// Storage configures the event history.
	Storage Storage `yaml:"storage"`
	// Modbus configures the register publisher; an empty endpoint disables it.
	Modbus Modbus `yaml:"modbus"`
	// Hardware selects the output driver.
	Hardware Hardware `yaml:"hardware"`
}

// AcknowledgedDelayMinutes is the acknowledgment timeout per tier, in minutes.
type AcknowledgedDelayMinutes struct {
	Critical int `yaml:"critical"`
	High     int `yaml:"high"`
	Medium   int `yaml:"medium"`
	Low      int `yaml:"low"`
}

// Delays converts the minutes to durations.
func (m AcknowledgedDelayMinutes) Delays() alarm.AcknowledgedDelays {
	return alarm.AcknowledgedDelays{
		Critical: time.Duration(m.Critical) * time.Minute,
		High:     time.Duration(m.High) * time.Minute,
		Medium:   time.Duration(m.Medium) * time.Minute,
		Low:      time.Duration(m.Low) * time.Minute,
	}
}

// DelayMinutes converts per-tier durations to whole minutes.
func DelayMinutes(d alarm.AcknowledgedDelays) AcknowledgedDelayMinutes {
	return AcknowledgedDelayMinutes{
		Critical: int(d.Critical / time.Minute),
		High:     int(d.High / time.Minute),
		Medium:   int(d.Medium / time.Minute),
		Low:      int(d.Low / time.Minute),
	}
}

// Display configures the front panel.
type Display struct {
	// Renderer is "log" or "terminal".
	Renderer string `yaml:"renderer"`
	// RotationInterval is the dwell of each acknowledged alarm.
	RotationInterval time.Duration `yaml:"rotation_interval"`
	// OKWindow is how long the OK screen stays lit.
	OKWindow time.Duration `yaml:"ok_window"`
}

// Point configures one measurement point.
type Point struct {
	// Address is the point index, 0..59.
	Address int `yaml:"address"`
	// Name overrides the default "Point N" label.
	Name string `yaml:"name,omitempty"`
	// LowThreshold overrides the default low threshold.
	LowThreshold *int `yaml:"low_threshold,omitempty"`
	// HighThreshold overrides the default high threshold.
	HighThreshold *int `yaml:"high_threshold,omitempty"`
	// Sensor binds a sensor to the point.
	Sensor *Sensor `yaml:"sensor,omitempty"`
}

// Sensor describes the sensor bound to a point.
type Sensor struct {
	// Kind is "simulated" or "modbus".
	Kind string `yaml:"kind"`
	// ID is the sensor identifier, e.g. a one-wire ROM code.
	ID string `yaml:"id"`
	// Value is the initial reading of a simulated sensor.
	Value float64 `yaml:"value,omitempty"`
	// Register is the input register of a Modbus sensor.
	Register uint16 `yaml:"register,omitempty"`
	// Scale multiplies the raw register value; zero means 0.1.
	Scale float64 `yaml:"scale,omitempty"`
}

// Alarm configures one alarm.
type Alarm struct {
	// Key is alarm_<address>_<ordinal>; legacy P<address>_<TYPE> keys are migrated on load.
	Key string `yaml:"key"`
	// Priority is LOW, MEDIUM, HIGH or CRITICAL.
	Priority string `yaml:"priority"`
	// Enabled defaults to true.
	Enabled *bool `yaml:"enabled,omitempty"`
	// Hysteresis is the dead-band in degrees.
	Hysteresis int `yaml:"hysteresis,omitempty"`
}

// IsEnabled reports the enabled flag, defaulting to true.
func (a Alarm) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// Storage configures the event history and the relay state file.
type Storage struct {
	// EventDatabase is the SQLite file; empty disables the history.
	EventDatabase string `yaml:"event_db,omitempty"`
	// EventLog is the rotating CSV file pattern; empty disables the CSV log.
	EventLog string `yaml:"event_log,omitempty"`
	// EventLogMaxAge is how long rotated CSV files are kept.
	EventLogMaxAge time.Duration `yaml:"event_log_max_age,omitempty"`
	// EventLogRotation is the CSV rotation period.
	EventLogRotation time.Duration `yaml:"event_log_rotation,omitempty"`
	// StateFile keeps the manual relay modes across restarts; empty disables it.
	StateFile string `yaml:"state_file,omitempty"`
}

// Modbus configures the Modbus TCP publisher.
type Modbus struct {
	// Endpoint is host:port of the Modbus TCP server.
	Endpoint string `yaml:"endpoint,omitempty"`
	// UnitID is the slave id.
	UnitID byte `yaml:"unit_id"`
	// Timeout bounds each request.
	Timeout time.Duration `yaml:"timeout"`
	// BaseRegister is the first holding register of the map.
	BaseRegister uint16 `yaml:"base_register"`
	// RelayCommandRegister is the holding register polled for Relay3 commands.
	RelayCommandRegister uint16 `yaml:"relay_command_register"`
	// PublishInterval is the period of register writes.
	PublishInterval time.Duration `yaml:"publish_interval"`
}

// Hardware selects the output driver.
type Hardware struct {
	// Kind is "log" or "serial".
	Kind string `yaml:"kind"`
	// SerialPort is the IO board port, e.g. /dev/ttyUSB0.
	SerialPort string `yaml:"serial_port,omitempty"`
	// BaudRate is the IO board speed.
	BaudRate int `yaml:"baud_rate,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename of the device configuration.
	DefaultConfigFilename = "tempmon.yaml"
	// DefaultListenAddress is the default gRPC address.
	DefaultListenAddress = "127.0.0.1:50051"
	// DefaultTimeout is the default duration for RPC calls.
	DefaultTimeout = 5 * time.Second
	// DefaultTickInterval is the default monitor loop period.
	DefaultTickInterval = 100 * time.Millisecond
	// DefaultMeasurementInterval is the default sensor polling period.
	DefaultMeasurementInterval = time.Second
	// DefaultAlarmInterval is the default alarm evaluation period.
	DefaultAlarmInterval = time.Second
	// DefaultEventLogMaxAge is how long rotated CSV files are kept by default.
	DefaultEventLogMaxAge = 30 * 24 * time.Hour
	// DefaultEventLogRotation is the default CSV rotation period.
	DefaultEventLogRotation = 24 * time.Hour
	// DefaultModbusTimeout is the default Modbus request timeout.
	DefaultModbusTimeout = time.Second
	// DefaultRelayCommandRegister is the default Relay3 command register.
	DefaultRelayCommandRegister = 300
	// DefaultBaudRate is the default IO board speed.
	DefaultBaudRate = 115200
	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// Renderer and driver kinds.
const (
	RendererLog      = "log"
	RendererTerminal = "terminal"
	HardwareLog      = "log"
	HardwareSerial   = "serial"
	SensorSimulated  = "simulated"
	SensorModbus     = "modbus"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidAddress is returned for point addresses outside the table.
	errInvalidAddress = errors.New("point address out of range")
	// errDuplicate is returned for points or alarms configured twice.
	errDuplicate = errors.New("configured twice")
	// errInvalidThresholds is returned when the low threshold is above the high one.
	errInvalidThresholds = errors.New("low threshold above high threshold")
	// errUnknownKind is returned for unknown renderer, hardware or sensor kinds.
	errUnknownKind = errors.New("unknown kind")
	// errSerialPortRequired is returned when the serial driver has no port.
	errSerialPortRequired = errors.New("serial port must be provided")
	// errInvalidLogLevel is returned for unknown log levels.
	errInvalidLogLevel = errors.New("invalid log level")
)

// Default returns a configuration with every default filled in.
func Default() *Config {
	cfg := new(Config)

	//nolint:errcheck // An empty configuration always validates.
	Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks ranges, kinds and alarm keys.
// Legacy alarm keys are rewritten in canonical form.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%q: %w", cfg.LogLevel, errInvalidLogLevel)
	}

	if err := validateKinds(cfg); err != nil {
		return err
	}

	if err := validatePoints(cfg.Points); err != nil {
		return err
	}

	if err := validateAlarms(cfg.Alarms); err != nil {
		return err
	}

	return validateRemovedAlarms(cfg.RemovedAlarms)
}

// ClientAddress returns the address CLI commands dial: the override when set,
// otherwise the listen address with an empty host replaced by the loopback.
func (c *Config) ClientAddress(override string) string {
	if override != "" {
		return override
	}

	host, port, err := net.SplitHostPort(c.ListenAddress)
	if err != nil || (host != "" && host != "0.0.0.0" && host != "::") {
		return c.ListenAddress
	}

	return net.JoinHostPort("127.0.0.1", port)
}

// applyDefaults fills every zero value with its default.
//
//nolint:cyclop // A flat list of defaults reads better than a table.
func applyDefaults(cfg *Config) {
	if cfg.DeviceName == "" {
		cfg.DeviceName = "tempmon"
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	defaultDuration(&cfg.Timeout, DefaultTimeout)
	defaultDuration(&cfg.TickInterval, DefaultTickInterval)
	defaultDuration(&cfg.MeasurementInterval, DefaultMeasurementInterval)
	defaultDuration(&cfg.AlarmInterval, DefaultAlarmInterval)
	defaultDuration(&cfg.ClearDelay, alarm.DefaultClearDelay)

	defaults := alarm.DefaultAcknowledgedDelays()
	defaultMinutes(&cfg.AcknowledgedDelayMinutes.Critical, defaults.Critical)
	defaultMinutes(&cfg.AcknowledgedDelayMinutes.High, defaults.High)
	defaultMinutes(&cfg.AcknowledgedDelayMinutes.Medium, defaults.Medium)
	defaultMinutes(&cfg.AcknowledgedDelayMinutes.Low, defaults.Low)

	if cfg.Display.Renderer == "" {
		cfg.Display.Renderer = RendererLog
	}

	defaultDuration(&cfg.Display.RotationInterval, 15*time.Second)
	defaultDuration(&cfg.Display.OKWindow, 60*time.Second)

	defaultDuration(&cfg.Storage.EventLogMaxAge, DefaultEventLogMaxAge)
	defaultDuration(&cfg.Storage.EventLogRotation, DefaultEventLogRotation)

	if cfg.Modbus.UnitID == 0 {
		cfg.Modbus.UnitID = 1
	}

	if cfg.Modbus.RelayCommandRegister == 0 {
		cfg.Modbus.RelayCommandRegister = DefaultRelayCommandRegister
	}

	defaultDuration(&cfg.Modbus.Timeout, DefaultModbusTimeout)
	defaultDuration(&cfg.Modbus.PublishInterval, time.Second)

	if cfg.Hardware.Kind == "" {
		cfg.Hardware.Kind = HardwareLog
	}

	if cfg.Hardware.BaudRate <= 0 {
		cfg.Hardware.BaudRate = DefaultBaudRate
	}
}

func defaultDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

func defaultMinutes(m *int, def time.Duration) {
	if *m <= 0 {
		*m = int(def / time.Minute)
	}
}

// validateKinds checks the renderer, hardware and sensor kinds.
func validateKinds(cfg *Config) error {
	switch cfg.Display.Renderer {
	case RendererLog, RendererTerminal:
	default:
		return fmt.Errorf("display renderer %q: %w", cfg.Display.Renderer, errUnknownKind)
	}

	switch cfg.Hardware.Kind {
	case HardwareLog:
	case HardwareSerial:
		if cfg.Hardware.SerialPort == "" {
			return errSerialPortRequired
		}
	default:
		return fmt.Errorf("hardware %q: %w", cfg.Hardware.Kind, errUnknownKind)
	}

	return nil
}

// validatePoints checks addresses, thresholds and sensors.
func validatePoints(points []Point) error {
	seen := make(map[int]struct{}, len(points))

	for _, p := range points {
		if p.Address < 0 || p.Address >= point.MaxPoints {
			return fmt.Errorf("point %d: %w", p.Address, errInvalidAddress)
		}

		if _, ok := seen[p.Address]; ok {
			return fmt.Errorf("point %d: %w", p.Address, errDuplicate)
		}

		seen[p.Address] = struct{}{}

		low, high := point.DefaultLow, point.DefaultHigh
		if p.LowThreshold != nil {
			low = *p.LowThreshold
		}

		if p.HighThreshold != nil {
			high = *p.HighThreshold
		}

		if low > high {
			return fmt.Errorf("point %d: %w", p.Address, errInvalidThresholds)
		}

		if p.Sensor == nil {
			continue
		}

		p.Sensor.Kind = strings.ToLower(strings.TrimSpace(p.Sensor.Kind))
		switch p.Sensor.Kind {
		case SensorSimulated, SensorModbus:
		default:
			return fmt.Errorf("point %d sensor %q: %w", p.Address, p.Sensor.Kind, errUnknownKind)
		}
	}

	return nil
}

// validateAlarms canonicalizes keys and checks priorities and duplicates.
func validateAlarms(alarms []Alarm) error {
	seen := make(map[alarm.Key]struct{}, len(alarms))

	for i := range alarms {
		a := &alarms[i]

		key, err := alarm.CanonicalKey(a.Key)
		if err != nil {
			return fmt.Errorf("alarm %d: %w", i, err)
		}

		_, address, _ := alarm.ParseKey(key.String())
		if address >= point.MaxPoints {
			return fmt.Errorf("alarm %s: %w", key, errInvalidAddress)
		}

		if _, ok := seen[key]; ok {
			return fmt.Errorf("alarm %s: %w", key, errDuplicate)
		}

		seen[key] = struct{}{}
		a.Key = key.String()

		priority, err := alarm.ParsePriority(a.Priority)
		if err != nil {
			return fmt.Errorf("alarm %s: %w", key, err)
		}

		a.Priority = priority.String()
	}

	return nil
}

// validateRemovedAlarms canonicalizes the removed keys.
func validateRemovedAlarms(keys []string) error {
	for i, raw := range keys {
		key, err := alarm.CanonicalKey(raw)
		if err != nil {
			return fmt.Errorf("removed alarm %d: %w", i, err)
		}

		keys[i] = key.String()
	}

	return nil
}
