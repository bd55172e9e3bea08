package area

import "errors"

// Domain errors for the area package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, area.ErrAreaNotFound) {
//	    // handle not found case
//	}
var (
	// ErrAreaNotFound is returned when an area ID does not exist.
	ErrAreaNotFound = errors.New("area: not found")

	// ErrAreaExists is returned when creating an area with an ID that already exists.
	ErrAreaExists = errors.New("area: already exists")

	// ErrInvalidName is returned when an area name is empty or too long.
	ErrInvalidName = errors.New("area: invalid name")

	// ErrCycleDetected is returned when a parent assignment would make an
	// area its own ancestor.
	ErrCycleDetected = errors.New("area: parent assignment creates cycle")

	// ErrParentNotFound is returned when the referenced parent area does not exist.
	ErrParentNotFound = errors.New("area: parent not found")

	// ErrAreaInUse is returned when deleting an area that still has child
	// areas or assigned devices.
	ErrAreaInUse = errors.New("area: still referenced")
)
