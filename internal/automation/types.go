package automation

import (
	"time"

	"github.com/google/uuid"
)

// TriggerType identifies what initiates an automation run.
type TriggerType string

const (
	// TriggerStateChanged fires when a matching state_changed event arrives.
	TriggerStateChanged TriggerType = "state_changed"

	// TriggerTimePattern fires on a cron-style schedule.
	TriggerTimePattern TriggerType = "time_pattern"

	// TriggerManual fires only through an explicit API invocation.
	TriggerManual TriggerType = "manual"
)

// Trigger initiates automation evaluation. Exactly one trigger per
// automation.
type Trigger struct {
	Type TriggerType `json:"type"`

	// state_changed fields. From/To empty means "any".
	EntityID string `json:"entity_id,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`

	// time_pattern field: a five-field cron expression ("*/5 * * * *").
	Schedule string `json:"schedule,omitempty"`
}

// ConditionType identifies a gate evaluated before actions run.
type ConditionType string

const (
	// ConditionStateIs passes when an entity currently has a given state.
	ConditionStateIs ConditionType = "state_is"

	// ConditionTimeRange passes when the current time of day falls inside
	// a window. Windows may cross midnight (after 22:00, before 06:00).
	ConditionTimeRange ConditionType = "time_range"
)

// Condition gates an automation run. Conditions are AND-combined in
// order and short-circuit on the first false.
type Condition struct {
	Type ConditionType `json:"type"`

	// state_is fields.
	EntityID string `json:"entity_id,omitempty"`
	State    string `json:"state,omitempty"`

	// time_range fields, "HH:MM" local time.
	After  string `json:"after,omitempty"`
	Before string `json:"before,omitempty"`
}

// ActionType identifies a step executed when an automation fires.
type ActionType string

const (
	// ActionCallService invokes a service against an entity.
	ActionCallService ActionType = "call_service"

	// ActionDelay suspends this automation's run without blocking others.
	ActionDelay ActionType = "delay"
)

// Action is a single step in an automation's sequence. Actions run
// strictly in order; step i+1 starts only after step i completes.
type Action struct {
	Type ActionType `json:"type"`

	// call_service fields.
	EntityID string         `json:"entity_id,omitempty"`
	Service  string         `json:"service,omitempty"`
	Data     map[string]any `json:"data,omitempty"`

	// delay field.
	DurationMS int `json:"duration_ms,omitempty"`
}

// Automation is a trigger/conditions/actions rule.
type Automation struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Enabled     bool    `json:"enabled"`

	Trigger    Trigger     `json:"trigger"`
	Conditions []Condition `json:"conditions,omitempty"`
	Actions    []Action    `json:"actions"`

	// LastTriggered is the only field the engine itself mutates.
	LastTriggered *time.Time `json:"last_triggered,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Automation.
// All map and slice fields are cloned so modifications to the copy
// do not affect the original.
func (a *Automation) DeepCopy() *Automation {
	if a == nil {
		return nil
	}

	cpy := *a
	cpy.Description = cloneStringPtr(a.Description)
	cpy.LastTriggered = cloneTimePtr(a.LastTriggered)

	if a.Conditions != nil {
		cpy.Conditions = make([]Condition, len(a.Conditions))
		copy(cpy.Conditions, a.Conditions)
	}
	if a.Actions != nil {
		cpy.Actions = make([]Action, len(a.Actions))
		for i, action := range a.Actions {
			cpy.Actions[i] = action
			if action.Data != nil {
				cpy.Actions[i].Data = deepCopyMap(action.Data)
			}
		}
	}
	return &cpy
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
		return v // Primitives are immutable
	}
}

// cloneStringPtr creates an independent copy of a *string.
func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// cloneTimePtr creates an independent copy of a *time.Time.
func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// GenerateID creates a new unique automation ID.
func GenerateID() string {
	return uuid.New().String()
}
