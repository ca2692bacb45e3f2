package sicp

import (
	"errors"
	"testing"
	"time"
)

func TestDeviceConfigDefaults(t *testing.T) {
	cfg := DeviceConfig{ID: "lobby", Host: "10.0.0.8"}.withDefaults()

	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.RetryDelay != DefaultRetryDelay {
		t.Errorf("RetryDelay = %v, want %v", cfg.RetryDelay, DefaultRetryDelay)
	}
	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, DefaultPollInterval)
	}
	// Zero retries is a valid explicit choice; defaults must not touch it.
	if cfg.Retries != 0 {
		t.Errorf("Retries = %d, want 0 untouched", cfg.Retries)
	}
}

func TestDeviceConfigDefaultsKeepExplicitValues(t *testing.T) {
	in := DeviceConfig{
		ID:           "lobby",
		Host:         "10.0.0.8",
		Port:         5001,
		Timeout:      time.Second,
		Retries:      5,
		RetryDelay:   250 * time.Millisecond,
		PollInterval: time.Minute,
	}
	if got := in.withDefaults(); got != in {
		t.Errorf("withDefaults() = %+v, want unchanged %+v", got, in)
	}
}

func TestDeviceConfigValidate(t *testing.T) {
	valid := DeviceConfig{ID: "lobby", Host: "10.0.0.8"}.withDefaults()

	tests := []struct {
		name   string
		mutate func(*DeviceConfig)
	}{
		{"missing id", func(c *DeviceConfig) { c.ID = "" }},
		{"missing host", func(c *DeviceConfig) { c.Host = "" }},
		{"port zero", func(c *DeviceConfig) { c.Port = 0 }},
		{"port too large", func(c *DeviceConfig) { c.Port = 70000 }},
		{"negative timeout", func(c *DeviceConfig) { c.Timeout = -time.Second }},
		{"negative retries", func(c *DeviceConfig) { c.Retries = -1 }},
		{"negative retry delay", func(c *DeviceConfig) { c.RetryDelay = -time.Second }},
		{"zero poll interval", func(c *DeviceConfig) { c.PollInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}

	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() on valid config = %v, want nil", err)
	}
}
