// Package history records entity state over time.
//
// The Recorder consumes the event bus, appends every event to the
// durable event log and snapshots the referenced entity on state or
// attribute changes; numeric attributes also flow to the time-series
// store. The Purger deletes snapshots and log rows past the retention
// window on a fixed interval.
package history
