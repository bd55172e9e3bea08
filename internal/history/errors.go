package history

import "errors"

// Domain errors for the history package.
var (
	// ErrInvalidRange is returned when a query window is inverted.
	ErrInvalidRange = errors.New("history: invalid time range")
)
