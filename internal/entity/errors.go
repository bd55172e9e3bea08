package entity

import "errors"

// Domain errors for the entity package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, entity.ErrEntityNotFound) {
//	    // handle not found case
//	}
var (
	// ErrEntityNotFound is returned when an entity key does not exist.
	ErrEntityNotFound = errors.New("entity: not found")

	// ErrEntityExists is returned when creating an entity whose key is taken.
	ErrEntityExists = errors.New("entity: already exists")

	// ErrInvalidEntity is returned when entity validation fails.
	ErrInvalidEntity = errors.New("entity: invalid")

	// ErrInvalidEntityID is returned when the entity key is malformed.
	ErrInvalidEntityID = errors.New("entity: invalid entity_id")

	// ErrInvalidState is returned when a state value is not recognised.
	ErrInvalidState = errors.New("entity: invalid state")
)
