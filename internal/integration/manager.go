package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/minihub-dev/minihub-core/internal/device"
	"github.com/minihub-dev/minihub-core/internal/entity"
	"github.com/minihub-dev/minihub-core/internal/event"
)

// Logger defines the logging interface used by the Manager.
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

// Authority is the entity-authority surface the manager needs.
type Authority interface {
	UpsertDiscovered(ctx context.Context, dev *device.Device, entities []entity.Entity) (*device.Device, []entity.Entity, error)
	Get(ctx context.Context, entityID string) (*entity.Entity, error)
	CallService(ctx context.Context, entityID, service string, data map[string]any) error
}

// DeviceReader resolves an entity's owning device for service routing.
type DeviceReader interface {
	GetByID(ctx context.Context, id string) (*device.Device, error)
}

// Supervision backoff bounds for background tasks.
const (
	restartBackoffMin = time.Second
	restartBackoffMax = time.Minute
)

// Manager owns the fixed set of integrations and drives their lifecycle:
// setup, supervised background tasks, service-call routing, teardown.
//
// Failures are isolated per integration: a setup error, a background
// crash, or a panic in one integration never affects the others or the
// core.
type Manager struct {
	integrations map[string]Integration
	order        []string
	authority    Authority
	devices      DeviceReader
	bus          *event.Bus
	logger       Logger

	// Restart backoff bounds, overridable in tests.
	backoffMin time.Duration
	backoffMax time.Duration

	mu      sync.Mutex
	started bool
	active  []string // names that completed Setup, in order
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates an integration manager over a fixed set of
// integrations. Registration order is preserved for setup and reversed
// for teardown.
func NewManager(authority Authority, devices DeviceReader, bus *event.Bus, integrations ...Integration) *Manager {
	m := &Manager{
		integrations: make(map[string]Integration, len(integrations)),
		authority:    authority,
		devices:      devices,
		bus:          bus,
		logger:       noopLogger{},
		backoffMin:   restartBackoffMin,
		backoffMax:   restartBackoffMax,
	}
	for _, in := range integrations {
		m.integrations[in.Name()] = in
		m.order = append(m.order, in.Name())
	}
	return m
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// managerContext is the per-integration Context handed to Setup.
type managerContext struct {
	m    *Manager
	name string
}

// UpsertDiscovered stamps the device with the integration's name and
// routes it through the entity authority.
func (c *managerContext) UpsertDiscovered(ctx context.Context, disc DiscoveredDevice) error {
	disc.Device.Integration = c.name
	_, _, err := c.m.authority.UpsertDiscovered(ctx, &disc.Device, disc.Entities)
	if err != nil {
		return fmt.Errorf("upserting discovery from %s: %w", c.name, err)
	}
	return nil
}

// Publish puts an event on the bus.
func (c *managerContext) Publish(ev event.Event) {
	c.m.bus.Publish(ev)
}

// SetupAll runs Setup on every integration and starts supervised
// background tasks for those that have one. A failing Setup disables
// that integration only; SetupAll still returns nil so the hub starts
// with whatever works.
func (m *Manager) SetupAll(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	for _, name := range m.order {
		in := m.integrations[name]
		if err := in.Setup(ctx, &managerContext{m: m, name: name}); err != nil {
			m.logger.Error("integration setup failed, disabling", "integration", name, "error", err)
			continue
		}

		m.mu.Lock()
		m.active = append(m.active, name)
		m.mu.Unlock()
		m.logger.Info("integration ready", "integration", name)

		if runner, ok := in.(BackgroundRunner); ok {
			m.wg.Add(1)
			go m.supervise(runCtx, name, runner)
		}
	}
	return nil
}

// supervise runs one integration's background task, restarting it with
// exponential backoff after errors or panics until shutdown.
func (m *Manager) supervise(ctx context.Context, name string, runner BackgroundRunner) {
	defer m.wg.Done()

	backoff := m.backoffMin
	for {
		err := m.runOnce(ctx, name, runner)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			m.logger.Error("integration task crashed, restarting", "integration", name, "backoff", backoff.String(), "error", err)
		} else {
			m.logger.Warn("integration task exited early, restarting", "integration", name, "backoff", backoff.String())
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > m.backoffMax {
			backoff = m.backoffMax
		}
	}
}

// runOnce executes one background run, converting panics to errors.
func (m *Manager) runOnce(ctx context.Context, name string, runner BackgroundRunner) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("integration %s panicked: %v", name, r)
		}
	}()
	return runner.Run(ctx)
}

// CallService routes a service call to whatever owns the target entity.
//
// The owning integration is resolved through the entity's device. When
// the entity, its device, or the integration is unknown to this manager,
// the call falls through to the entity authority's built-in services, so
// manually created entities stay controllable.
func (m *Manager) CallService(ctx context.Context, entityID, service string, data map[string]any) error {
	ent, err := m.authority.Get(ctx, entityID)
	if err != nil {
		if errors.Is(err, entity.ErrEntityNotFound) {
			return m.authority.CallService(ctx, entityID, service, data)
		}
		return err
	}

	owner := m.lookupOwner(ctx, ent.DeviceID)
	if owner == nil {
		return m.authority.CallService(ctx, entityID, service, data)
	}

	if err := owner.HandleServiceCall(ctx, entityID, service, data); err != nil {
		return fmt.Errorf("integration %s handling %s: %w", owner.Name(), service, err)
	}
	return nil
}

// lookupOwner resolves the integration owning a device, or nil when the
// device or integration is unknown.
func (m *Manager) lookupOwner(ctx context.Context, deviceID string) Integration {
	if deviceID == "" {
		return nil
	}
	dev, err := m.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil
	}
	return m.integrations[dev.Integration]
}

// Get returns a registered integration by name.
func (m *Manager) Get(name string) (Integration, error) {
	in, ok := m.integrations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIntegrationNotFound, name)
	}
	return in, nil
}

// ActiveNames returns the integrations that completed Setup.
func (m *Manager) ActiveNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.active...)
}

// TeardownAll stops background tasks and tears integrations down in
// reverse setup order. Teardown errors are logged, not propagated, so
// one stuck integration cannot block shutdown of the rest.
func (m *Manager) TeardownAll(ctx context.Context) {
	m.mu.Lock()
	cancel := m.cancel
	active := append([]string(nil), m.active...)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	for i := len(active) - 1; i >= 0; i-- {
		name := active[i]
		if err := m.integrations[name].Teardown(ctx); err != nil {
			m.logger.Error("integration teardown failed", "integration", name, "error", err)
			continue
		}
		m.logger.Info("integration stopped", "integration", name)
	}
}
