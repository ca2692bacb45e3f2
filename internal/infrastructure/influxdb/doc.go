// Package influxdb provides InfluxDB connectivity for the panel service.
//
// It wraps the official influxdb-client-go v2 library with the service's
// patterns for connection management, point writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series storage for panel telemetry: per-panel
// availability, LED state, and power state over time.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "panelworks",
//	    Bucket:  "panels",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WritePanelMetric("lobby", "available", 1)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback. Connection and health check errors are returned directly.
package influxdb
