package telemetry

import (
	"github.com/panelworks/sicp-core/internal/sicp"
)

// Measurement and tag names used for panel points.
const (
	measurementPanelState = "panel_state"
	tagPanelID            = "panel_id"
)

// Writer is the subset of the InfluxDB client the recorder needs.
// It is satisfied by *influxdb.Client.
type Writer interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]interface{})
}

// Recorder maps panel state snapshots to time-series points.
type Recorder struct {
	writer Writer
}

// New creates a recorder writing through the given client.
func New(writer Writer) *Recorder {
	return &Recorder{writer: writer}
}

// Listener adapts the recorder to the device manager's listener signature.
func (r *Recorder) Listener() sicp.StateListener {
	return func(deviceID string, state sicp.DeviceState) {
		r.Record(deviceID, state)
	}
}

// Record writes one panel state snapshot as a point.
//
// Power is encoded as a string field ("on", "off", "unknown") so the
// unknown state stays queryable instead of collapsing into false.
func (r *Recorder) Record(panelID string, state sicp.DeviceState) {
	power := "unknown"
	if state.Power.On != nil {
		if *state.Power.On {
			power = "on"
		} else {
			power = "off"
		}
	}

	fields := map[string]interface{}{
		"available": state.Available,
		"led_on":    state.Led.On,
		"led_red":   int64(state.Led.Red),
		"led_green": int64(state.Led.Green),
		"led_blue":  int64(state.Led.Blue),
		"power":     power,
	}
	if state.LastError != "" {
		fields["last_error"] = state.LastError
	}

	r.writer.WritePoint(measurementPanelState, map[string]string{tagPanelID: panelID}, fields)
}
