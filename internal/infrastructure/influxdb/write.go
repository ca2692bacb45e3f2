package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePanelMetric writes a single panel measurement.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WritePanelMetric("lobby", "available", 1)
//	client.WritePanelMetric("lobby", "led_on", 0)
func (c *Client) WritePanelMetric(panelID string, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"panel_metrics",
		map[string]string{
			"panel_id":    panelID,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Tags are indexed and should stay low cardinality; fields carry the data.
//
// Example:
//
//	client.WritePoint("panel_state",
//	    map[string]string{"panel_id": "lobby"},
//	    map[string]interface{}{"available": true, "led_on": false})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
// Use this when the timestamp is not "now" (e.g., delayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
