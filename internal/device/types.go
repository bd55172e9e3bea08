package device

import (
	"time"

	"github.com/google/uuid"
)

// Device is a physical or logical thing an integration manages: a bulb,
// a relay board, a bridge. Entities hang off devices; the device itself
// carries identity and placement, not state.
type Device struct {
	// ID is a UUID assigned by the hub at registration.
	ID string `json:"id"`

	// Name is the human-readable device name.
	Name string `json:"name"`

	// Manufacturer and Model are informational metadata from discovery.
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`

	// AreaID optionally places the device in an area. Assigned by the
	// user after registration; discovery never overwrites it.
	AreaID *string `json:"area_id,omitempty"`

	// Integration names the integration that owns this device
	// (e.g., "virtual", "mqtt"). Service calls for the device's
	// entities route here.
	Integration string `json:"integration"`

	// UniqueID is the integration-scoped stable identifier used to
	// deduplicate discovery announcements. Empty means no dedup.
	UniqueID string `json:"unique_id,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy returns an independent copy of the device.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d

	if d.AreaID != nil {
		areaID := *d.AreaID
		cpy.AreaID = &areaID
	}

	return &cpy
}

// GenerateID creates a new UUID for a device.
func GenerateID() string {
	return uuid.New().String()
}
