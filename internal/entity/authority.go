package entity

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/minihub-dev/minihub-core/internal/device"
	"github.com/minihub-dev/minihub-core/internal/event"
)

// Logger defines the logging interface used by the Authority.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher is the event bus surface the Authority needs.
type Publisher interface {
	Publish(ev event.Event)
}

// Built-in services handled directly by the Authority for entities
// without an owning integration handler.
const (
	ServiceTurnOn  = "turn_on"
	ServiceTurnOff = "turn_off"
	ServiceToggle  = "toggle"
)

// Authority is the sole writer of entity state and attributes.
//
// All mutations for a given entity key are serialized through a per-key
// mutex; writers to different entities proceed independently. Every
// mutating call that changes at least one field publishes exactly one
// event on the bus, after the store commit succeeds. Publication is
// best-effort: the write has already succeeded by the time the event is
// published, so a degraded bus never fails a write.
type Authority struct {
	entities Repository
	devices  device.Repository
	bus      Publisher
	logger   Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewAuthority creates the entity state authority.
func NewAuthority(entities Repository, devices device.Repository, bus Publisher) *Authority {
	return &Authority{
		entities: entities,
		devices:  devices,
		bus:      bus,
		logger:   noopLogger{},
		locks:    make(map[string]*sync.Mutex),
	}
}

// SetLogger sets the logger for the authority.
func (a *Authority) SetLogger(logger Logger) {
	a.logger = logger
}

// lockEntity acquires the write lock for one entity key and returns the
// release function.
func (a *Authority) lockEntity(entityID string) func() {
	a.locksMu.Lock()
	l, ok := a.locks[entityID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[entityID] = l
	}
	a.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

// publish sends an event to the bus. Failures here never propagate to
// the caller; the write they describe has already committed.
func (a *Authority) publish(ev event.Event) {
	if a.bus == nil {
		a.logger.Warn("event dropped, no bus attached", "type", ev.Type, "entity_id", ev.EntityID)
		return
	}
	a.bus.Publish(ev)
}

// UpsertDiscovered resolves a discovered device and its entities against
// the registry. The device is matched by (integration, unique_id) when a
// unique ID is present, otherwise by row ID; an existing match keeps its
// stored ID and area assignment. Entities are inserted when new; existing
// entities take the discovered friendly name and attributes, and the
// state only when one is supplied.
func (a *Authority) UpsertDiscovered(ctx context.Context, dev *device.Device, entities []Entity) (*device.Device, []Entity, error) {
	stored, created, err := a.upsertDevice(ctx, dev)
	if err != nil {
		return nil, nil, err
	}
	if created {
		a.publish(event.New(event.TypeDeviceDetected, "", map[string]any{
			"device_id":   stored.ID,
			"name":        stored.Name,
			"integration": stored.Integration,
		}))
	}

	result := make([]Entity, 0, len(entities))
	for i := range entities {
		ent, err := a.upsertEntity(ctx, stored.ID, &entities[i])
		if err != nil {
			return nil, nil, err
		}
		result = append(result, *ent)
	}
	return stored, result, nil
}

// upsertDevice inserts or merges one device record, reporting whether a
// new row was created.
func (a *Authority) upsertDevice(ctx context.Context, dev *device.Device) (*device.Device, bool, error) {
	var existing *device.Device
	var err error

	if dev.UniqueID != "" {
		existing, err = a.devices.GetByIntegrationID(ctx, dev.Integration, dev.UniqueID)
	} else if dev.ID != "" {
		existing, err = a.devices.GetByID(ctx, dev.ID)
	} else {
		err = device.ErrDeviceNotFound
	}

	switch {
	case err == nil:
		// Rediscovery of a known device: merge descriptive fields,
		// keep the stored identity and any user area assignment.
		existing.Name = dev.Name
		existing.Manufacturer = dev.Manufacturer
		existing.Model = dev.Model
		if err := a.devices.Update(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("merging device %s: %w", existing.ID, err)
		}
		return existing, false, nil

	case errorsIsNotFound(err):
		fresh := dev.DeepCopy()
		if fresh.ID == "" {
			fresh.ID = device.GenerateID()
		}
		if err := fresh.Validate(); err != nil {
			return nil, false, err
		}
		if err := a.devices.Create(ctx, fresh); err != nil {
			return nil, false, err
		}
		a.logger.Info("device discovered", "id", fresh.ID, "integration", fresh.Integration)
		return fresh, true, nil

	default:
		return nil, false, err
	}
}

// upsertEntity inserts or merges one entity under its per-key lock.
func (a *Authority) upsertEntity(ctx context.Context, deviceID string, in *Entity) (*Entity, error) {
	if err := ValidateEntityID(in.EntityID); err != nil {
		return nil, err
	}
	if in.State != "" && !in.State.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, in.State)
	}

	unlock := a.lockEntity(in.EntityID)
	defer unlock()

	existing, err := a.entities.GetByEntityID(ctx, in.EntityID)
	if err == nil {
		changed := false
		attrsChanged := false
		if in.FriendlyName != "" && in.FriendlyName != existing.FriendlyName {
			existing.FriendlyName = in.FriendlyName
			changed = true
		}
		if len(in.Attributes) > 0 && !attributesUnchanged(existing.Attributes, in.Attributes) {
			if existing.Attributes == nil {
				existing.Attributes = make(map[string]any, len(in.Attributes))
			}
			for k, v := range in.Attributes {
				existing.Attributes[k] = deepCopyValue(v)
			}
			changed = true
			attrsChanged = true
		}

		now := time.Now().UTC()
		var from State
		stateChanged := false
		if in.State != "" && in.State != existing.State {
			from = existing.State
			existing.State = in.State
			existing.LastChanged = now
			changed = true
			stateChanged = true
		}
		if !changed {
			return existing, nil
		}

		existing.LastUpdated = now
		if err := a.entities.Update(ctx, existing); err != nil {
			return nil, err
		}
		// One event per mutating upsert: a state transition wins over an
		// attribute refresh.
		switch {
		case stateChanged:
			a.publish(event.New(event.TypeStateChanged, existing.EntityID, map[string]any{
				"from": string(from),
				"to":   string(existing.State),
			}))
		case attrsChanged:
			a.publish(event.New(event.TypeAttributeChanged, existing.EntityID, map[string]any{
				"attributes": deepCopyMap(in.Attributes),
			}))
		}
		return existing, nil
	}
	if !errorsIsNotFound(err) {
		return nil, err
	}

	fresh := in.DeepCopy()
	fresh.DeviceID = deviceID
	if fresh.ID == "" {
		fresh.ID = GenerateID()
	}
	if fresh.State == "" {
		fresh.State = StateUnknown
	}
	now := time.Now().UTC()
	fresh.LastChanged = now
	fresh.LastUpdated = now
	if err := fresh.Validate(); err != nil {
		return nil, err
	}
	if err := a.entities.Create(ctx, fresh); err != nil {
		return nil, err
	}

	a.logger.Info("entity added", "entity_id", fresh.EntityID, "device_id", deviceID)
	a.publish(event.New(event.TypeEntityAdded, fresh.EntityID, map[string]any{
		"state":         string(fresh.State),
		"friendly_name": fresh.FriendlyName,
	}))
	return fresh, nil
}

// UpdateState sets the state of an entity.
//
// If the new state equals the current state, LastChanged is preserved;
// LastUpdated always advances. The StateChanged event is published only
// when the value actually changed, after the store commit.
func (a *Authority) UpdateState(ctx context.Context, entityID string, newState State) (*Entity, error) {
	if !newState.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, newState)
	}

	unlock := a.lockEntity(entityID)
	defer unlock()

	ent, err := a.entities.GetByEntityID(ctx, entityID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	from := ent.State
	changed := newState != ent.State

	ent.State = newState
	ent.LastUpdated = now
	if changed {
		ent.LastChanged = now
	}
	if err := a.entities.Update(ctx, ent); err != nil {
		return nil, err
	}

	if changed {
		a.logger.Debug("state changed", "entity_id", entityID, "from", from, "to", newState)
		a.publish(event.New(event.TypeStateChanged, entityID, map[string]any{
			"from": string(from),
			"to":   string(newState),
		}))
	}
	return ent, nil
}

// UpdateAttributes merges the patch into the entity's attributes.
// Existing keys are overwritten, absent keys inserted; no key is removed.
func (a *Authority) UpdateAttributes(ctx context.Context, entityID string, patch map[string]any) (*Entity, error) {
	unlock := a.lockEntity(entityID)
	defer unlock()

	ent, err := a.entities.GetByEntityID(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return ent, nil
	}

	if ent.Attributes == nil {
		ent.Attributes = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		ent.Attributes[k] = deepCopyValue(v)
	}
	ent.LastUpdated = time.Now().UTC()

	if err := a.entities.Update(ctx, ent); err != nil {
		return nil, err
	}

	a.publish(event.New(event.TypeAttributeChanged, entityID, map[string]any{
		"attributes": deepCopyMap(patch),
	}))
	return ent, nil
}

// Get returns a single entity by its textual key.
func (a *Authority) Get(ctx context.Context, entityID string) (*Entity, error) {
	return a.entities.GetByEntityID(ctx, entityID)
}

// CurrentState returns the state string for an entity key. It exists so
// the authority can serve as a state reader for condition evaluation.
func (a *Authority) CurrentState(ctx context.Context, entityID string) (string, error) {
	ent, err := a.entities.GetByEntityID(ctx, entityID)
	if err != nil {
		return "", err
	}
	return string(ent.State), nil
}

// List returns all entities.
func (a *Authority) List(ctx context.Context) ([]Entity, error) {
	return a.entities.List(ctx)
}

// ListByDevice returns the entities owned by one device.
func (a *Authority) ListByDevice(ctx context.Context, deviceID string) ([]Entity, error) {
	return a.entities.ListByDevice(ctx, deviceID)
}

// ListByDevices returns the entities owned by any of the given devices
// in one query, for callers assembling a device view.
func (a *Authority) ListByDevices(ctx context.Context, deviceIDs []string) ([]Entity, error) {
	return a.entities.FindByDeviceIDs(ctx, deviceIDs)
}

// Delete removes an entity and publishes EntityRemoved.
func (a *Authority) Delete(ctx context.Context, entityID string) error {
	unlock := a.lockEntity(entityID)
	defer unlock()

	if err := a.entities.Delete(ctx, entityID); err != nil {
		return err
	}

	a.logger.Info("entity removed", "entity_id", entityID)
	a.publish(event.New(event.TypeEntityRemoved, entityID, nil))
	return nil
}

// CallService executes a built-in service against an entity.
//
// Unknown services are a logged no-op, not an error: callers (automations,
// API clients) should not fail because a target entity does not support a
// particular verb. A toggle against a missing entity is likewise a no-op.
func (a *Authority) CallService(ctx context.Context, entityID, service string, data map[string]any) error {
	var err error
	switch service {
	case ServiceTurnOn:
		_, err = a.UpdateState(ctx, entityID, StateOn)
	case ServiceTurnOff:
		_, err = a.UpdateState(ctx, entityID, StateOff)
	case ServiceToggle:
		err = a.toggle(ctx, entityID)
	default:
		a.logger.Debug("ignoring unknown service", "entity_id", entityID, "service", service)
		return nil
	}
	if err != nil {
		return err
	}

	a.publish(event.New(event.TypeServiceCalled, entityID, map[string]any{
		"service": service,
		"data":    deepCopyMap(data),
	}))
	return nil
}

// toggle flips the entity's switchable state. A missing entity is treated
// as a no-op: toggling something that is not there has nothing to flip.
func (a *Authority) toggle(ctx context.Context, entityID string) error {
	ent, err := a.entities.GetByEntityID(ctx, entityID)
	if err != nil {
		if errorsIsNotFound(err) {
			a.logger.Debug("toggle on missing entity ignored", "entity_id", entityID)
			return nil
		}
		return err
	}
	_, err = a.UpdateState(ctx, entityID, ent.State.Toggled())
	return err
}

// attributesUnchanged reports whether every incoming attribute already
// holds the same value in the stored map. A rediscovery that repeats the
// known attributes must not count as a mutation: integrations replay
// their announcements on every reconnect.
func attributesUnchanged(stored, incoming map[string]any) bool {
	for k, v := range incoming {
		cur, ok := stored[k]
		if !ok || !reflect.DeepEqual(cur, v) {
			return false
		}
	}
	return true
}

// errorsIsNotFound reports whether err is one of the registry not-found
// sentinels.
func errorsIsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound) || errors.Is(err, device.ErrDeviceNotFound)
}
