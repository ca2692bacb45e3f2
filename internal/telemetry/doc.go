// Package telemetry records panel state changes as time-series points.
//
// The Recorder is wired into the device manager as a state listener and
// maps every state snapshot to a single "panel_state" point tagged by
// panel id. Writes go through the non-blocking batched InfluxDB client,
// so recording never slows down panel control.
package telemetry
