package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/panelworks/sicp-core/internal/sicp"
)

// Config is the root configuration for the SICP panel service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Panels   []PanelConfig  `yaml:"panels"`
	Manager  ManagerConfig  `yaml:"manager"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServiceConfig identifies this service instance.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// PanelConfig describes one display panel endpoint.
//
// Only id and host are required; everything else falls back to the
// protocol defaults when zero.
type PanelConfig struct {
	ID   string `yaml:"id"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Timing fields are whole seconds, zero meaning the protocol default.
	Timeout      int `yaml:"timeout"`
	RetryDelay   int `yaml:"retry_delay"`
	PollInterval int `yaml:"poll_interval"`

	// Retries is a pointer so "retries: 0" is distinguishable from the
	// key being absent (which takes the protocol default).
	Retries *int `yaml:"retries"`
}

// ManagerConfig contains device-manager behaviour settings.
type ManagerConfig struct {
	// PollOnStartup performs one synchronous refresh round for all
	// panels before the service reports ready.
	PollOnStartup bool `yaml:"poll_on_startup"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryLimit caps the rows kept per panel in the state history.
	HistoryLimit int `yaml:"history_limit"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	TopicBase string              `yaml:"topic_base"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB v2 connection settings.
type InfluxDBConfig struct {
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
// Environment variables follow the pattern: SICP_SECTION_KEY
// For example: SICP_DATABASE_PATH, SICP_MQTT_HOST
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
		Service: ServiceConfig{
			ID:   "sicp-001",
			Name: "SICP Panel Service",
		},
		Manager: ManagerConfig{
			PollOnStartup: true,
		},
		Database: DatabaseConfig{
			Path:         "./data/sicp.db",
			WALMode:      true,
			BusyTimeout:  5,
			HistoryLimit: 1000,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sicpd",
			},
			QoS:       1,
			TopicBase: "sicp",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
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
// Environment variables follow the pattern: SICP_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("SICP_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SICP_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SICP_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("SICP_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SICP_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("SICP_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("SICP_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("SICP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}

	if len(c.Panels) == 0 {
		errs = append(errs, "at least one panel must be configured")
	}
	seen := make(map[string]bool, len(c.Panels))
	for i, p := range c.Panels {
		if p.ID == "" {
			errs = append(errs, fmt.Sprintf("panels[%d].id is required", i))
			continue
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Sprintf("panels[%d].id %q is duplicated", i, p.ID))
		}
		seen[p.ID] = true
		if p.Host == "" {
			errs = append(errs, fmt.Sprintf("panels[%d] (%s): host is required", i, p.ID))
		}
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set SICP_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DeviceManagerConfig converts the panel roster into the device manager's
// configuration. Per-panel zero values fall back to protocol defaults
// inside the manager.
func (c *Config) DeviceManagerConfig() sicp.ManagerConfig {
	devices := make([]sicp.DeviceConfig, 0, len(c.Panels))
	for _, p := range c.Panels {
		retries := sicp.DefaultRetries
		if p.Retries != nil {
			retries = *p.Retries
		}
		devices = append(devices, sicp.DeviceConfig{
			ID:           p.ID,
			Host:         p.Host,
			Port:         p.Port,
			Timeout:      time.Duration(p.Timeout) * time.Second,
			Retries:      retries,
			RetryDelay:   time.Duration(p.RetryDelay) * time.Second,
			PollInterval: time.Duration(p.PollInterval) * time.Second,
		})
	}
	return sicp.ManagerConfig{
		Devices:       devices,
		PollOnStartup: c.Manager.PollOnStartup,
	}
}
