package entity

import (
	"time"

	"github.com/google/uuid"
)

// State is the authoritative value of an entity.
type State string

// Valid entity states.
const (
	StateOn          State = "on"
	StateOff         State = "off"
	StateUnknown     State = "unknown"
	StateUnavailable State = "unavailable"
)

// IsValid returns true if the state is one of the known values.
func (s State) IsValid() bool {
	switch s {
	case StateOn, StateOff, StateUnknown, StateUnavailable:
		return true
	}
	return false
}

// Toggled returns the opposite switchable state. Unknown and unavailable
// toggle to on, matching the behaviour users expect from a wall switch
// whose current state is indeterminate.
func (s State) Toggled() State {
	if s == StateOn {
		return StateOff
	}
	return StateOn
}

// Entity represents a single controllable or observable point exposed by
// a device (a light, a sensor reading, a switch).
type Entity struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`

	// EntityID is the globally unique textual key, e.g. "light.kitchen".
	EntityID string `json:"entity_id"`

	FriendlyName string         `json:"friendly_name"`
	State        State          `json:"state"`
	Attributes   map[string]any `json:"attributes,omitempty"`

	// LastChanged moves only when the state value changes;
	// LastUpdated moves on every write, state or attributes.
	LastChanged time.Time `json:"last_changed"`
	LastUpdated time.Time `json:"last_updated"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete copy of the entity, including nested
// attribute maps. The copy can be mutated without affecting the original.
func (e *Entity) DeepCopy() *Entity {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Attributes = deepCopyMap(e.Attributes)
	return &cpy
}

// deepCopyMap recursively copies a map[string]any.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = deepCopyValue(v)
	}
	return result
}

// deepCopyValue copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		result := make([]any, len(val))
		for i, elem := range val {
			result[i] = deepCopyValue(elem)
		}
		return result
	default:
		return v
	}
}

// GenerateID creates a new unique entity row ID.
func GenerateID() string {
	return uuid.New().String()
}
