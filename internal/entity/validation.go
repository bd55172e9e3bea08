package entity

import (
	"fmt"
	"regexp"
)

// Validation limits.
const (
	maxNameLength     = 128
	maxAttributeKeys  = 100
	maxStringValueLen = 4096
	entityIDPattern   = `^[a-z0-9_]+\.[a-z0-9_]+$`
)

var entityIDRegex = regexp.MustCompile(entityIDPattern)

// ValidateEntityID checks the textual entity key format ("domain.object").
func ValidateEntityID(entityID string) error {
	if entityID == "" {
		return fmt.Errorf("%w: entity_id cannot be empty", ErrInvalidEntityID)
	}
	if !entityIDRegex.MatchString(entityID) {
		return fmt.Errorf("%w: %q must match domain.object (lowercase, digits, underscore)", ErrInvalidEntityID, entityID)
	}
	return nil
}

// Validate checks the entity for structural errors before persistence.
func (e *Entity) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEntity)
	}
	if e.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidEntity)
	}
	if err := ValidateEntityID(e.EntityID); err != nil {
		return err
	}
	if len(e.FriendlyName) > maxNameLength {
		return fmt.Errorf("%w: friendly_name exceeds %d characters", ErrInvalidEntity, maxNameLength)
	}
	if !e.State.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, e.State)
	}
	if len(e.Attributes) > maxAttributeKeys {
		return fmt.Errorf("%w: attributes exceed %d keys", ErrInvalidEntity, maxAttributeKeys)
	}
	for k, v := range e.Attributes {
		if s, ok := v.(string); ok && len(s) > maxStringValueLen {
			return fmt.Errorf("%w: attribute %q value too long", ErrInvalidEntity, k)
		}
	}
	return nil
}
