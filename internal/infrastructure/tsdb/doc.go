// Package tsdb provides time-series storage for entity telemetry.
//
// This package wraps the InfluxDB v2 client and manages:
//   - Connection with token authentication and health checks
//   - Non-blocking batched writes of numeric entity attributes
//   - State transition records for timeline dashboards
//
// # Architecture
//
// The history recorder consumes the event bus and, when enabled, mirrors
// numeric attribute values into InfluxDB as a charting side-channel. The
// SQLite history table remains the authoritative record; telemetry here
// is best-effort and write failures never block the hub.
//
// # Usage
//
//	client, err := tsdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    // tsdb.ErrDisabled when influxdb.enabled=false
//	}
//	defer client.Close()
//
//	client.WriteEntityMetric("sensor.hallway_temperature", "temperature", 21.5)
package tsdb
