package area

import (
	"fmt"
	"strings"
)

const maxNameLength = 100

// ValidateName checks if an area name is valid.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// Validate checks the area for structural errors before persistence.
func (a *Area) Validate() error {
	if err := ValidateName(a.Name); err != nil {
		return err
	}
	if a.ParentID != nil && *a.ParentID == a.ID {
		return fmt.Errorf("%w: area cannot be its own parent", ErrCycleDetected)
	}
	return nil
}
