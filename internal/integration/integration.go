package integration

import (
	"context"

	"github.com/minihub-dev/minihub-core/internal/device"
	"github.com/minihub-dev/minihub-core/internal/entity"
	"github.com/minihub-dev/minihub-core/internal/event"
)

// DiscoveredDevice is what an integration hands to the core: a device
// and the entities it exposes. It is not persisted directly; the entity
// authority translates it into device and entity upserts.
type DiscoveredDevice struct {
	Device   device.Device
	Entities []entity.Entity
}

// Context is the narrow surface integrations get from the manager.
//
// It exposes exactly two capabilities: pushing discovered devices into
// the entity authority, and publishing events. Integrations cannot read
// unrelated entities or bypass validation.
type Context interface {
	// UpsertDiscovered registers or refreshes a discovered device and its
	// entities. The manager stamps the device with the calling
	// integration's name before the upsert.
	UpsertDiscovered(ctx context.Context, disc DiscoveredDevice) error

	// Publish puts an event on the bus.
	Publish(ev event.Event)
}

// Integration is a protocol adapter. The set of integrations is fixed at
// build time; the composition root constructs them and hands them to the
// manager, which drives setup, service routing, and teardown.
type Integration interface {
	// Name is the stable identifier used as the device dedup key prefix
	// and for service routing ("virtual", "mqtt").
	Name() string

	// Setup is called once at startup, after the core services are fully
	// wired. The context remains valid until Teardown.
	Setup(ctx context.Context, ic Context) error

	// HandleServiceCall executes a service against an entity this
	// integration owns. Unknown services are a no-op success, not an
	// error.
	HandleServiceCall(ctx context.Context, entityID, service string, data map[string]any) error

	// Teardown is called once at shutdown and must release every
	// integration-owned resource, even if the background task failed.
	Teardown(ctx context.Context) error
}

// BackgroundRunner is implemented by integrations that need a long-lived
// task (polling loops, connection keepalives). Run blocks until the
// context is cancelled; a returned error or panic is caught by the
// manager's supervisor, which restarts the task with backoff.
type BackgroundRunner interface {
	Run(ctx context.Context) error
}
