package integration

import "errors"

// Domain errors for the integration package.
var (
	// ErrIntegrationNotFound is returned when no registered integration
	// matches a name.
	ErrIntegrationNotFound = errors.New("integration: not found")

	// ErrAlreadyStarted is returned when SetupAll is called twice.
	ErrAlreadyStarted = errors.New("integration: manager already started")
)
