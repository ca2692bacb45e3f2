// Package logging provides structured logging for the SICP panel service.
//
// It wraps Go's standard log/slog package so every component logs in a
// consistent, machine-parsable shape.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "panels", 4)
//	logger.Error("failed to connect", "error", err)
//
// The core sicp package accepts this logger through its own small Logger
// interface, so protocol code never imports infrastructure.
package logging
