// Package virtual provides a self-contained demo integration.
//
// It discovers a lamp, a relay, and a thermometer that exist only in
// memory, drifts the thermometer reading on an interval, and flips the
// actuators in response to service calls. It exercises the full
// integration surface without any external hardware, which makes it
// useful for demos and for end-to-end testing of the core.
package virtual

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/minihub-dev/minihub-core/internal/device"
	"github.com/minihub-dev/minihub-core/internal/entity"
	"github.com/minihub-dev/minihub-core/internal/integration"
)

// Name is the integration identifier.
const Name = "virtual"

// Entity keys for the fixed set of virtual entities.
const (
	lampEntityID   = "light.virtual_lamp"
	relayEntityID  = "switch.virtual_relay"
	sensorEntityID = "sensor.virtual_temperature"
)

const (
	defaultSensorInterval = 30 * time.Second

	// baseTemperature is where the simulated reading starts; the random
	// walk stays within maxDrift of it.
	baseTemperature = 21.0
	maxDrift        = 4.0
)

var (
	_ integration.Integration      = (*Virtual)(nil)
	_ integration.BackgroundRunner = (*Virtual)(nil)
)

// Virtual is the in-memory demo integration.
type Virtual struct {
	interval time.Duration

	mu     sync.Mutex
	ic     integration.Context
	states map[string]entity.State
	temp   float64
	rng    *rand.Rand
}

// New creates the virtual integration. A non-positive sensorInterval
// falls back to the default.
func New(sensorInterval time.Duration) *Virtual {
	if sensorInterval <= 0 {
		sensorInterval = defaultSensorInterval
	}
	return &Virtual{
		interval: sensorInterval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Name returns the integration identifier.
func (v *Virtual) Name() string { return Name }

// Setup discovers the virtual devices. Actuator discovery carries no
// state so rediscovery after a restart never clobbers what the core has
// stored.
func (v *Virtual) Setup(ctx context.Context, ic integration.Context) error {
	v.mu.Lock()
	v.ic = ic
	v.states = map[string]entity.State{
		lampEntityID:  entity.StateUnknown,
		relayEntityID: entity.StateUnknown,
	}
	v.temp = baseTemperature
	v.mu.Unlock()

	if err := ic.UpsertDiscovered(ctx, lampDiscovery("")); err != nil {
		return fmt.Errorf("discovering lamp: %w", err)
	}
	if err := ic.UpsertDiscovered(ctx, relayDiscovery("")); err != nil {
		return fmt.Errorf("discovering relay: %w", err)
	}
	return v.publishReading(ctx)
}

// Run drifts the thermometer reading until the context is cancelled.
func (v *Virtual) Run(ctx context.Context) error {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := v.publishReading(ctx); err != nil {
				return fmt.Errorf("publishing reading: %w", err)
			}
		}
	}
}

// HandleServiceCall flips the addressed actuator. Unknown services and
// entities without a writable state are a no-op success.
func (v *Virtual) HandleServiceCall(ctx context.Context, entityID, service string, _ map[string]any) error {
	v.mu.Lock()
	cur, ok := v.states[entityID]
	if !ok {
		v.mu.Unlock()
		return nil
	}

	var next entity.State
	switch service {
	case entity.ServiceTurnOn:
		next = entity.StateOn
	case entity.ServiceTurnOff:
		next = entity.StateOff
	case entity.ServiceToggle:
		next = cur.Toggled()
	default:
		v.mu.Unlock()
		return nil
	}
	v.states[entityID] = next
	ic := v.ic
	v.mu.Unlock()

	return v.pushActuator(ctx, ic, entityID, next)
}

// Teardown releases nothing; the virtual devices live and die with the
// process.
func (v *Virtual) Teardown(context.Context) error { return nil }

// pushActuator reports an actuator's new state through a discovery
// upsert, which is the only write path an integration has.
func (v *Virtual) pushActuator(ctx context.Context, ic integration.Context, entityID string, state entity.State) error {
	var disc integration.DiscoveredDevice
	switch entityID {
	case lampEntityID:
		disc = lampDiscovery(state)
	case relayEntityID:
		disc = relayDiscovery(state)
	default:
		return nil
	}
	if err := ic.UpsertDiscovered(ctx, disc); err != nil {
		return fmt.Errorf("reporting %s: %w", entityID, err)
	}
	return nil
}

// publishReading advances the random walk and upserts the thermometer.
func (v *Virtual) publishReading(ctx context.Context) error {
	v.mu.Lock()
	v.temp += (v.rng.Float64() - 0.5) * 0.6
	if v.temp > baseTemperature+maxDrift {
		v.temp = baseTemperature + maxDrift
	}
	if v.temp < baseTemperature-maxDrift {
		v.temp = baseTemperature - maxDrift
	}
	reading := math.Round(v.temp*10) / 10
	ic := v.ic
	v.mu.Unlock()

	disc := integration.DiscoveredDevice{
		Device: device.Device{
			Name:         "Virtual Thermometer",
			Manufacturer: "Minihub",
			Model:        "VT-1",
			UniqueID:     "virtual-thermometer",
		},
		Entities: []entity.Entity{{
			EntityID:     sensorEntityID,
			FriendlyName: "Virtual Temperature",
			State:        entity.StateOn,
			Attributes: map[string]any{
				"temperature": reading,
				"unit":        "°C",
			},
		}},
	}
	if err := ic.UpsertDiscovered(ctx, disc); err != nil {
		return fmt.Errorf("reporting thermometer: %w", err)
	}
	return nil
}

func lampDiscovery(state entity.State) integration.DiscoveredDevice {
	return integration.DiscoveredDevice{
		Device: device.Device{
			Name:         "Virtual Lamp",
			Manufacturer: "Minihub",
			Model:        "VL-1",
			UniqueID:     "virtual-lamp",
		},
		Entities: []entity.Entity{{
			EntityID:     lampEntityID,
			FriendlyName: "Virtual Lamp",
			State:        state,
		}},
	}
}

func relayDiscovery(state entity.State) integration.DiscoveredDevice {
	return integration.DiscoveredDevice{
		Device: device.Device{
			Name:         "Virtual Relay",
			Manufacturer: "Minihub",
			Model:        "VR-1",
			UniqueID:     "virtual-relay",
		},
		Entities: []entity.Entity{{
			EntityID:     relayEntityID,
			FriendlyName: "Virtual Relay",
			State:        state,
		}},
	}
}
