package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the doorduino gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Serial     SerialConfig     `yaml:"serial"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Topics     TopicsConfig     `yaml:"topics"`
	Buttons    ButtonsConfig    `yaml:"buttons"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SerialConfig contains the door controller's serial line settings.
type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`

	// ReadTimeout bounds a single line read; the monitor re-polls afterwards.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// OpenSettle is the firmware warm-up time after the port is opened.
	// The controller resets on open and ignores commands until it has booted.
	OpenSettle time.Duration `yaml:"open_settle"`

	// CommandSettle is the pause after every command written to the device.
	CommandSettle time.Duration `yaml:"command_settle"`

	// ReopenDelay is the wait between failed open attempts.
	ReopenDelay time.Duration `yaml:"reopen_delay"`

	// ManageDevices lists every controller port the admin tool talks to.
	// Empty means Device only.
	ManageDevices []string `yaml:"manage_devices"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// Publisher selects how outbound events are delivered:
	// "client" uses the persistent connection, "command" runs Command once per message.
	Publisher string            `yaml:"publisher"`
	Command   MQTTCommandConfig `yaml:"command"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
// Delays are in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// MQTTCommandConfig configures the one-shot external publisher.
type MQTTCommandConfig struct {
	Binary  string        `yaml:"binary"`
	Server  string        `yaml:"server"`
	Timeout time.Duration `yaml:"timeout"`
}

// TopicsConfig maps gateway roles to MQTT topic names.
type TopicsConfig struct {
	Doorbell  string `yaml:"doorbell"`
	DoorOpen  string `yaml:"dooropen"`
	LockState string `yaml:"lockstate"`

	// Status carries the gateway's retained online/offline availability.
	Status string `yaml:"status"`

	// SyncTrigger, when set, starts a reconciliation cycle on any message.
	SyncTrigger string `yaml:"sync_trigger"`

	// SpaceState lists the inbound topics that drive the space state.
	SpaceState []string `yaml:"spacestate"`

	// PulseHold is how long a pulse event stays at "1" before "0" is sent.
	PulseHold time.Duration `yaml:"pulse_hold"`
}

// ButtonsConfig contains access list and reconciliation settings.
type ButtonsConfig struct {
	AccessList AccessListConfig `yaml:"access_list"`

	// MinAuthoritative is the smallest access list that may drive a sync.
	MinAuthoritative int `yaml:"min_authoritative"`

	// MinDevice is the smallest device button list trusted as a complete read.
	MinDevice int `yaml:"min_device"`

	// CollectWindow is how long list_buttons replies are collected.
	CollectWindow time.Duration `yaml:"collect_window"`

	// SyncInterval is the period between scheduled cycles. Zero disables the schedule.
	SyncInterval time.Duration `yaml:"sync_interval"`

	// SyncOnConnect starts a cycle whenever the serial link (re)connects.
	SyncOnConnect bool `yaml:"sync_on_connect"`

	Git GitConfig `yaml:"git"`
}

// AccessListConfig describes the authoritative CSV file.
type AccessListConfig struct {
	Path   string `yaml:"path"`
	Column int    `yaml:"column"`
	Comma  string `yaml:"comma"`
}

// GitConfig controls the refresh of the access list checkout before each cycle.
type GitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Binary  string        `yaml:"binary"`
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout"`
}

// SupervisorConfig contains loop restart settings.
type SupervisorConfig struct {
	RestartDelay    time.Duration `yaml:"restart_delay"`
	MaxRestartDelay time.Duration `yaml:"max_restart_delay"`
	StableThreshold time.Duration `yaml:"stable_threshold"`

	// HealthInterval is how often loop and link counters are reported.
	// Zero disables the report.
	HealthInterval time.Duration `yaml:"health_interval"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`

	// Gateway is added as a "gateway" tag to every point, so several
	// doors can share a bucket.
	Gateway string `yaml:"gateway"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// Output is stdout, stderr or syslog.
	Output    string `yaml:"output"`
	SyslogTag string `yaml:"syslog_tag"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DOORDUINO_SECTION_KEY
// For example: DOORDUINO_SERIAL_DEVICE, DOORDUINO_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with the values the doorduino firmware expects.
func defaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Device:        "/dev/ttyACM0",
			Baud:          115200,
			ReadTimeout:   time.Second,
			OpenSettle:    2 * time.Second,
			CommandSettle: 2 * time.Second,
			ReopenDelay:   2 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "doorduino",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  12,
			},
			Publisher: "client",
			Command: MQTTCommandConfig{
				Binary:  "/usr/bin/mqtt-simple",
				Timeout: 10 * time.Second,
			},
		},
		Topics: TopicsConfig{
			PulseHold: 2 * time.Second,
		},
		Buttons: ButtonsConfig{
			AccessList: AccessListConfig{
				Comma: ",",
			},
			MinAuthoritative: 25,
			MinDevice:        5,
			CollectWindow:    10 * time.Second,
			SyncInterval:     time.Hour,
			SyncOnConnect:    true,
			Git: GitConfig{
				Binary:  "git",
				Timeout: time.Minute,
			},
		},
		InfluxDB: InfluxDBConfig{
			Org:           "bitlair",
			Bucket:        "doorduino",
			BatchSize:     20,
			FlushInterval: 5,
			Gateway:       "doorduino",
		},
		Supervisor: SupervisorConfig{
			RestartDelay:    time.Second,
			MaxRestartDelay: 30 * time.Second,
			StableThreshold: time.Minute,
			HealthInterval:  5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			Output:    "stdout",
			SyslogTag: "doorduino",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DOORDUINO_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOORDUINO_SERIAL_DEVICE"); v != "" {
		cfg.Serial.Device = v
	}

	if v := os.Getenv("DOORDUINO_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DOORDUINO_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DOORDUINO_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("DOORDUINO_ACCESS_LIST"); v != "" {
		cfg.Buttons.AccessList.Path = v
	}

	if v := os.Getenv("DOORDUINO_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Serial.Device == "" {
		errs = append(errs, "serial.device is required")
	}
	if c.Serial.Baud <= 0 {
		errs = append(errs, "serial.baud must be positive")
	}
	if c.Serial.ReadTimeout <= 0 {
		errs = append(errs, "serial.read_timeout must be positive")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Reconnect.InitialDelay < 1 {
		errs = append(errs, "mqtt.reconnect.initial_delay must be at least 1")
	}
	if c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, "mqtt.reconnect.max_delay must not be below initial_delay")
	}
	if c.MQTT.Reconnect.MaxAttempts < 1 {
		errs = append(errs, "mqtt.reconnect.max_attempts must be at least 1")
	}
	switch c.MQTT.Publisher {
	case "client":
	case "command":
		if c.MQTT.Command.Binary == "" {
			errs = append(errs, "mqtt.command.binary is required when mqtt.publisher is command")
		}
	default:
		errs = append(errs, "mqtt.publisher must be client or command")
	}

	if c.Topics.Doorbell == "" {
		errs = append(errs, "topics.doorbell is required")
	}
	if c.Topics.DoorOpen == "" {
		errs = append(errs, "topics.dooropen is required")
	}
	if c.Topics.LockState == "" {
		errs = append(errs, "topics.lockstate is required")
	}

	if c.Buttons.AccessList.Path != "" {
		if c.Buttons.AccessList.Column < 0 {
			errs = append(errs, "buttons.access_list.column must not be negative")
		}
		if len([]rune(c.Buttons.AccessList.Comma)) != 1 {
			errs = append(errs, "buttons.access_list.comma must be a single character")
		}
	}
	if c.Buttons.MinAuthoritative < 1 {
		errs = append(errs, "buttons.min_authoritative must be at least 1")
	}
	if c.Buttons.MinDevice < 1 {
		errs = append(errs, "buttons.min_device must be at least 1")
	}
	if c.Buttons.CollectWindow <= 0 {
		errs = append(errs, "buttons.collect_window must be positive")
	}
	if c.Buttons.Git.Enabled && c.Buttons.Git.Dir == "" {
		errs = append(errs, "buttons.git.dir is required when git refresh is enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
