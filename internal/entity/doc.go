// Package entity holds the entity domain model and the state Authority,
// the single writer of entity state and attributes.
//
// All state mutations flow through the Authority, which serializes writes
// per entity key, persists through the Repository, and publishes the
// resulting event on the bus only after the store commit succeeds. Bus
// publication is best-effort: a write never fails because notification
// was degraded.
//
// Usage:
//
//	authority := entity.NewAuthority(entityRepo, deviceRepo, bus)
//	authority.SetLogger(logger)
//
//	ent, err := authority.UpdateState(ctx, "light.kitchen", entity.StateOn)
//	if errors.Is(err, entity.ErrEntityNotFound) {
//	    // unknown entity key
//	}
package entity
