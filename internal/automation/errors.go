package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrAutomationNotFound) {
//	    // handle not found case
//	}
var (
	// ErrAutomationNotFound is returned when an automation ID does not exist.
	ErrAutomationNotFound = errors.New("automation: not found")

	// ErrAutomationExists is returned when creating an automation with an ID
	// that already exists.
	ErrAutomationExists = errors.New("automation: already exists")

	// ErrAutomationDisabled is returned when manually triggering a disabled
	// automation.
	ErrAutomationDisabled = errors.New("automation: disabled")

	// ErrInvalidAutomation is returned when automation validation fails.
	ErrInvalidAutomation = errors.New("automation: invalid")

	// ErrInvalidTrigger is returned when the trigger definition is malformed.
	ErrInvalidTrigger = errors.New("automation: invalid trigger")

	// ErrInvalidCondition is returned when a condition definition is malformed.
	ErrInvalidCondition = errors.New("automation: invalid condition")

	// ErrInvalidAction is returned when an action definition is malformed.
	ErrInvalidAction = errors.New("automation: invalid action")
)
