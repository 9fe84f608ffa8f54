package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the flipdot server.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Serial    SerialConfig             `yaml:"serial"`
	Displays  map[string]DisplayConfig `yaml:"displays"`
	Server    ServerConfig             `yaml:"server"`
	State     StateConfig              `yaml:"state"`
	Scheduler SchedulerConfig          `yaml:"scheduler"`
	History   HistoryConfig            `yaml:"history"`
	MQTT      MQTTConfig               `yaml:"mqtt"`
	Metrics   MetricsConfig            `yaml:"metrics"`
	Logging   LoggingConfig            `yaml:"logging"`
}

// SerialConfig contains the shared serial bus settings. An empty port means
// the server runs with no-op controllers instead of real hardware.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// DisplayConfig describes one attached panel.
type DisplayConfig struct {
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
	Address int `yaml:"address"`
}

// ServerConfig contains TCP listener settings.
type ServerConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	AllowedPeerPrefix string `yaml:"allowed_peer_prefix"`
	ReadTimeout       int    `yaml:"read_timeout"`
	WriteTimeout      int    `yaml:"write_timeout"`
}

// StateConfig contains persisted-state settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig contains control loop settings.
type SchedulerConfig struct {
	TickInterval int `yaml:"tick_interval"` // milliseconds
}

// HistoryConfig contains the SQLite commit-audit settings.
type HistoryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Retention int    `yaml:"retention"` // days
}

// MQTTConfig contains MQTT broker connection settings for status publishing.
type MQTTConfig struct {
	Enabled bool             `yaml:"enabled"`
	Broker  MQTTBrokerConfig `yaml:"broker"`
	Auth    MQTTAuthConfig   `yaml:"auth"`
	QoS     int              `yaml:"qos"`
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

// MetricsConfig contains InfluxDB connection settings.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FLIPDOT_SECTION_KEY
// For example: FLIPDOT_SERIAL_PORT, FLIPDOT_MQTT_PASSWORD
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Baud: 57600,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         1810,
			ReadTimeout:  10,
			WriteTimeout: 5,
		},
		State: StateConfig{
			Path: "./data/state.json",
		},
		Scheduler: SchedulerConfig{
			TickInterval: 250,
		},
		History: HistoryConfig{
			Path:      "./data/history.db",
			Retention: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "flipdot-server",
			},
			QoS: 1,
		},
		Metrics: MetricsConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FLIPDOT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Serial
	if v := os.Getenv("FLIPDOT_SERIAL_PORT"); v != "" {
		cfg.Serial.Port = v
	}

	// Server
	if v := os.Getenv("FLIPDOT_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("FLIPDOT_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// State
	if v := os.Getenv("FLIPDOT_STATE_PATH"); v != "" {
		cfg.State.Path = v
	}

	// MQTT
	if v := os.Getenv("FLIPDOT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FLIPDOT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FLIPDOT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Metrics
	if v := os.Getenv("FLIPDOT_METRICS_TOKEN"); v != "" {
		cfg.Metrics.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	// State validation
	if c.State.Path == "" {
		errs = append(errs, "state.path is required")
	}

	// Scheduler validation
	if c.Scheduler.TickInterval < 1 {
		errs = append(errs, "scheduler.tick_interval must be positive")
	}

	// Display validation
	for id, d := range c.Displays {
		if d.Width < 1 || d.Height < 1 {
			errs = append(errs, fmt.Sprintf("displays.%s: width and height must be positive", id))
		}
		if d.Address < 0 || d.Address > 3 {
			errs = append(errs, fmt.Sprintf("displays.%s: address must be between 0 and 3", id))
		}
	}

	// Serial validation: a configured port implies real hardware, which
	// needs at least one display to drive.
	if c.Serial.Port != "" {
		if c.Serial.Baud < 1 {
			errs = append(errs, "serial.baud must be positive")
		}
		if len(c.Displays) == 0 {
			errs = append(errs, "serial.port is set but no displays are configured")
		}
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Metrics validation
	if c.Metrics.Enabled && c.Metrics.URL == "" {
		errs = append(errs, "metrics.url is required when metrics are enabled")
	}

	// History validation
	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetTickInterval returns the scheduler tick interval as a Duration.
func (c *Config) GetTickInterval() time.Duration {
	return time.Duration(c.Scheduler.TickInterval) * time.Millisecond
}

// GetReadTimeout returns the server read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeout) * time.Second
}

// GetWriteTimeout returns the server write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeout) * time.Second
}
