package automation

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Validation limits.
const (
	maxNameLength = 128
	maxActions    = 50
	maxConditions = 20

	// maxDelay bounds a single delay action so one automation cannot
	// park a goroutine for hours.
	maxDelay = time.Hour
)

// validStates are the entity states referenced by triggers and conditions.
var validStates = map[string]bool{
	"on": true, "off": true, "unknown": true, "unavailable": true,
}

// Validate checks the automation for structural errors before persistence.
func (a *Automation) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidAutomation)
	}
	if a.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidAutomation)
	}
	if len(a.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidAutomation, maxNameLength)
	}
	if err := a.Trigger.Validate(); err != nil {
		return err
	}
	if len(a.Conditions) > maxConditions {
		return fmt.Errorf("%w: more than %d conditions", ErrInvalidAutomation, maxConditions)
	}
	for i := range a.Conditions {
		if err := a.Conditions[i].Validate(); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}
	if len(a.Actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", ErrInvalidAutomation)
	}
	if len(a.Actions) > maxActions {
		return fmt.Errorf("%w: more than %d actions", ErrInvalidAutomation, maxActions)
	}
	for i := range a.Actions {
		if err := a.Actions[i].Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

// Validate checks a trigger definition.
func (t *Trigger) Validate() error {
	switch t.Type {
	case TriggerStateChanged:
		if t.EntityID == "" {
			return fmt.Errorf("%w: state_changed requires entity_id", ErrInvalidTrigger)
		}
		if t.From != "" && !validStates[t.From] {
			return fmt.Errorf("%w: unknown from state %q", ErrInvalidTrigger, t.From)
		}
		if t.To != "" && !validStates[t.To] {
			return fmt.Errorf("%w: unknown to state %q", ErrInvalidTrigger, t.To)
		}
	case TriggerTimePattern:
		if t.Schedule == "" {
			return fmt.Errorf("%w: time_pattern requires schedule", ErrInvalidTrigger)
		}
		if _, err := cron.ParseStandard(t.Schedule); err != nil {
			return fmt.Errorf("%w: bad schedule %q: %v", ErrInvalidTrigger, t.Schedule, err)
		}
	case TriggerManual:
		// No fields.
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTrigger, t.Type)
	}
	return nil
}

// Validate checks a condition definition.
func (c *Condition) Validate() error {
	switch c.Type {
	case ConditionStateIs:
		if c.EntityID == "" {
			return fmt.Errorf("%w: state_is requires entity_id", ErrInvalidCondition)
		}
		if !validStates[c.State] {
			return fmt.Errorf("%w: unknown state %q", ErrInvalidCondition, c.State)
		}
	case ConditionTimeRange:
		if _, err := parseClock(c.After); err != nil {
			return fmt.Errorf("%w: bad after %q", ErrInvalidCondition, c.After)
		}
		if _, err := parseClock(c.Before); err != nil {
			return fmt.Errorf("%w: bad before %q", ErrInvalidCondition, c.Before)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCondition, c.Type)
	}
	return nil
}

// Validate checks an action definition.
func (a *Action) Validate() error {
	switch a.Type {
	case ActionCallService:
		if a.EntityID == "" {
			return fmt.Errorf("%w: call_service requires entity_id", ErrInvalidAction)
		}
		if a.Service == "" {
			return fmt.Errorf("%w: call_service requires service", ErrInvalidAction)
		}
	case ActionDelay:
		d := time.Duration(a.DurationMS) * time.Millisecond
		if d <= 0 {
			return fmt.Errorf("%w: delay requires positive duration_ms", ErrInvalidAction)
		}
		if d > maxDelay {
			return fmt.Errorf("%w: delay exceeds %s", ErrInvalidAction, maxDelay)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
	}
	return nil
}

// parseClock parses an "HH:MM" time-of-day value into minutes since
// midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
