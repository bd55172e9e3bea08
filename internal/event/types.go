package event

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of event flowing through the bus.
type Type string

// Event types emitted by the hub.
const (
	// TypeStateChanged is emitted when an entity's state value changes.
	// Data carries "from" and "to" state strings.
	TypeStateChanged Type = "state_changed"

	// TypeAttributeChanged is emitted when entity attributes are merged.
	TypeAttributeChanged Type = "attribute_changed"

	// TypeEntityAdded is emitted when a new entity is registered.
	TypeEntityAdded Type = "entity_added"

	// TypeEntityRemoved is emitted when an entity is deleted.
	TypeEntityRemoved Type = "entity_removed"

	// TypeAutomationTriggered is emitted after an automation's actions
	// complete successfully.
	TypeAutomationTriggered Type = "automation_triggered"

	// TypeServiceCalled is emitted when a service call is dispatched.
	TypeServiceCalled Type = "service_called"

	// TypeDeviceDetected is emitted when discovery registers a device.
	TypeDeviceDetected Type = "device_detected"

	// TypeCustom is for integration-defined events.
	TypeCustom Type = "custom"
)

// AllTypes returns all known event types.
func AllTypes() []Type {
	return []Type{
		TypeStateChanged,
		TypeAttributeChanged,
		TypeEntityAdded,
		TypeEntityRemoved,
		TypeAutomationTriggered,
		TypeServiceCalled,
		TypeDeviceDetected,
		TypeCustom,
	}
}

// IsValid reports whether t is a known event type.
func (t Type) IsValid() bool {
	for _, known := range AllTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Event is a single occurrence in the hub: a state transition, a
// discovery, an automation firing. Events are immutable once published.
type Event struct {
	// ID is a UUID assigned at creation.
	ID string `json:"id"`

	// Type classifies the event.
	Type Type `json:"type"`

	// EntityID is the canonical key of the entity this event concerns
	// (e.g., "light.kitchen"). Empty for events without an entity subject.
	EntityID string `json:"entity_id,omitempty"`

	// Data carries type-specific payload. For state_changed events the
	// keys "from" and "to" hold the old and new state strings.
	Data map[string]any `json:"data,omitempty"`

	// Timestamp is when the event was created (UTC).
	Timestamp time.Time `json:"timestamp"`
}

// New creates an event with a fresh ID and the current time.
func New(t Type, entityID string, data map[string]any) Event {
	return Event{
		ID:        GenerateID(),
		Type:      t,
		EntityID:  entityID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// DeepCopy returns a copy of the event with the data map cloned.
// Subscribers receive copies so they can never mutate the bus's view.
func (e Event) DeepCopy() Event {
	cpy := e
	cpy.Data = deepCopyMap(e.Data)
	return cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value
		return v
	}
}

// GenerateID creates a new UUID for an event.
func GenerateID() string {
	return uuid.New().String()
}
