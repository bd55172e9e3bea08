// Package device manages the registry of devices discovered by
// integrations.
//
// A device is the physical unit (bulb, relay, sensor node); its
// controllable surfaces live in the entity package. Devices are
// deduplicated during discovery by the (integration, unique_id) pair so
// repeated announcements update the existing record instead of creating
// duplicates, preserving the hub-assigned ID and any user area
// assignment.
package device
