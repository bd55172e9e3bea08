package tsdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteEntityMetric writes a single entity measurement.
//
// This is the primary method for recording numeric entity telemetry.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - entityKey: Canonical entity key (e.g., "sensor.hallway_temperature")
//   - measurement: The attribute name (e.g., "temperature", "power_watts")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteEntityMetric("sensor.hallway_temperature", "temperature", 21.5)
func (c *Client) WriteEntityMetric(entityKey string, measurement string, value float64) {
	c.WriteEntityMetricAt(entityKey, measurement, value, time.Now())
}

// WriteEntityMetricAt writes an entity measurement with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., replayed events).
func (c *Client) WriteEntityMetricAt(entityKey string, measurement string, value float64, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"entity_metrics",
		map[string]string{
			"entity_id":   entityKey,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteStateTransition records a state change as a telemetry point.
//
// States are recorded as strings in a field so dashboards can render
// on/off timelines alongside numeric series.
func (c *Client) WriteStateTransition(entityKey string, from, to string, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"entity_state",
		map[string]string{
			"entity_id": entityKey,
		},
		map[string]interface{}{
			"from": from,
			"to":   to,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("hub_stats",
//	    map[string]string{"hub": "hub-001"},
//	    map[string]interface{}{"events_per_sec": 45.2})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
