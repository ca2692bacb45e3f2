package sicp

import (
	"fmt"
	"time"
)

// Default communication parameters, matching the panels' observed
// behaviour. Individual panels may override any of them.
const (
	// DefaultPort is the TCP port panels listen on for SICP.
	DefaultPort = 5000

	// DefaultTimeout bounds a single connect/write/read operation.
	DefaultTimeout = 5 * time.Second

	// DefaultRetries is the number of additional attempts after the first.
	DefaultRetries = 2

	// DefaultRetryDelay is the fixed pause between attempts.
	DefaultRetryDelay = time.Second

	// DefaultPollInterval is how often a panel is refreshed.
	DefaultPollInterval = 30 * time.Second
)

// DeviceConfig describes one panel. It is immutable: supplied at
// construction, validated once, and never mutated afterwards.
type DeviceConfig struct {
	// ID uniquely identifies the panel across the manager, listeners,
	// and every integration surface.
	ID string

	// Host and Port address the panel's SICP endpoint.
	Host string
	Port int

	// Timeout bounds each single network operation (connect, write, read).
	Timeout time.Duration

	// Retries is the number of additional attempts after a connection
	// failure; RetryDelay is the fixed pause between attempts.
	Retries    int
	RetryDelay time.Duration

	// PollInterval is the period between background refreshes.
	PollInterval time.Duration
}

// withDefaults returns a copy with zero-valued optional fields filled in.
func (c DeviceConfig) withDefaults() DeviceConfig {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Validate checks the configuration. It is called once at construction;
// a config that passes never fails later.
func (c DeviceConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}
	if c.Host == "" {
		return fmt.Errorf("%w: %s: host is required", ErrInvalidConfig, c.ID)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %s: port must be between 1 and 65535, got %d", ErrInvalidConfig, c.ID, c.Port)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: %s: timeout must be positive", ErrInvalidConfig, c.ID)
	}
	if c.Retries < 0 {
		return fmt.Errorf("%w: %s: retries must not be negative", ErrInvalidConfig, c.ID)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: %s: retry delay must not be negative", ErrInvalidConfig, c.ID)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: %s: poll interval must be positive", ErrInvalidConfig, c.ID)
	}
	return nil
}

// ManagerConfig configures the device manager.
type ManagerConfig struct {
	// Devices is the panel roster. Identifiers must be unique.
	Devices []DeviceConfig

	// PollOnStartup performs one synchronous refresh round for all panels
	// before Start returns, so first readers see real state immediately
	// rather than unknown.
	PollOnStartup bool
}
