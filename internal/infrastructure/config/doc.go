// Package config handles loading and validating the service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (SICP_* prefix)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (broker passwords, InfluxDB tokens) should be set
//     via environment variables rather than the config file
//   - The config file should have restricted permissions (0600)
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	manager, err := sicp.NewManager(cfg.DeviceManagerConfig())
package config
