package device

import "fmt"

// Validation limits.
const (
	maxNameLength = 128
)

// Validate checks the device for structural errors before persistence.
func (d *Device) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(d.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	if d.Integration == "" {
		return fmt.Errorf("%w: integration is required", ErrInvalidIntegration)
	}
	return nil
}
