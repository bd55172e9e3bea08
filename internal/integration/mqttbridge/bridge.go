// Package mqttbridge connects MQTT devices to the hub.
//
// External devices announce themselves on minihub/discovery/+, report
// state on minihub/state/<entity>, and receive commands on
// minihub/command/<entity>. The bridge translates between those topics
// and the core's discovery upserts and service calls.
package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/minihub-dev/minihub-core/internal/device"
	"github.com/minihub-dev/minihub-core/internal/entity"
	"github.com/minihub-dev/minihub-core/internal/infrastructure/mqtt"
	"github.com/minihub-dev/minihub-core/internal/integration"
)

// Name is the integration identifier.
const Name = "mqtt"

// Logger defines the logging interface used by the bridge.
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

// Broker is the MQTT client surface the bridge needs.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

var _ Broker = (*mqtt.Client)(nil)

// discoveryAnnouncement is the wire format devices publish on
// minihub/discovery/<source>.
type discoveryAnnouncement struct {
	Device   discoveryDevice   `json:"device"`
	Entities []discoveryEntity `json:"entities"`
}

type discoveryDevice struct {
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	UniqueID     string `json:"unique_id"`
}

type discoveryEntity struct {
	EntityID     string         `json:"entity_id"`
	FriendlyName string         `json:"friendly_name,omitempty"`
	State        string         `json:"state,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// stateReport is the wire format for minihub/state/<entity>.
type stateReport struct {
	State      string         `json:"state,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// commandPayload is what the bridge publishes on minihub/command/<entity>.
type commandPayload struct {
	Service string         `json:"service"`
	Data    map[string]any `json:"data,omitempty"`
}

var (
	_ integration.Integration = (*Bridge)(nil)
)

// Bridge is the MQTT device integration.
type Bridge struct {
	broker Broker
	qos    byte
	topics mqtt.Topics
	logger Logger

	mu  sync.Mutex
	ic  integration.Context
	ctx context.Context
	// known maps entity keys to the device that announced them, so a
	// state report can be folded back into a discovery upsert.
	known map[string]discoveryDevice
}

// New creates the MQTT bridge over an established broker connection.
func New(broker Broker, qos byte) *Bridge {
	return &Bridge{
		broker: broker,
		qos:    qos,
		logger: noopLogger{},
		known:  make(map[string]discoveryDevice),
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
}

// Name returns the integration identifier.
func (b *Bridge) Name() string { return Name }

// Setup subscribes to the discovery and state topic trees. The context
// is retained for message handlers, which fire outside any request.
func (b *Bridge) Setup(ctx context.Context, ic integration.Context) error {
	b.mu.Lock()
	b.ic = ic
	b.ctx = ctx
	b.mu.Unlock()

	if err := b.broker.Subscribe(b.topics.AllDiscovery(), b.qos, b.handleDiscovery); err != nil {
		return fmt.Errorf("subscribing to discovery: %w", err)
	}
	if err := b.broker.Subscribe(b.topics.AllEntityStates(), b.qos, b.handleState); err != nil {
		return fmt.Errorf("subscribing to states: %w", err)
	}
	return nil
}

// HandleServiceCall forwards the call to the device's command topic.
// The device itself decides what the service means, so every service is
// forwarded, not just the built-ins.
func (b *Bridge) HandleServiceCall(_ context.Context, entityID, service string, data map[string]any) error {
	payload, err := json.Marshal(commandPayload{Service: service, Data: data})
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}
	if err := b.broker.Publish(b.topics.EntityCommand(entityID), payload, b.qos, false); err != nil {
		return fmt.Errorf("publishing command for %s: %w", entityID, err)
	}
	return nil
}

// Teardown drops the topic subscriptions.
func (b *Bridge) Teardown(context.Context) error {
	if err := b.broker.Unsubscribe(b.topics.AllDiscovery()); err != nil {
		return fmt.Errorf("unsubscribing discovery: %w", err)
	}
	if err := b.broker.Unsubscribe(b.topics.AllEntityStates()); err != nil {
		return fmt.Errorf("unsubscribing states: %w", err)
	}
	return nil
}

// handleDiscovery translates an announcement into a discovery upsert.
func (b *Bridge) handleDiscovery(topic string, payload []byte) error {
	var ann discoveryAnnouncement
	if err := json.Unmarshal(payload, &ann); err != nil {
		return fmt.Errorf("decoding announcement on %s: %w", topic, err)
	}
	if ann.Device.UniqueID == "" || ann.Device.Name == "" {
		return fmt.Errorf("announcement on %s missing device name or unique_id", topic)
	}

	disc := integration.DiscoveredDevice{
		Device: device.Device{
			Name:         ann.Device.Name,
			Manufacturer: ann.Device.Manufacturer,
			Model:        ann.Device.Model,
			UniqueID:     ann.Device.UniqueID,
		},
	}
	for _, e := range ann.Entities {
		disc.Entities = append(disc.Entities, entity.Entity{
			EntityID:     e.EntityID,
			FriendlyName: e.FriendlyName,
			State:        entity.State(e.State),
			Attributes:   e.Attributes,
		})
	}

	b.mu.Lock()
	ctx, ic := b.ctx, b.ic
	for _, e := range ann.Entities {
		b.known[e.EntityID] = ann.Device
	}
	b.mu.Unlock()

	if err := ic.UpsertDiscovered(ctx, disc); err != nil {
		return fmt.Errorf("upserting announcement from %s: %w", topic, err)
	}
	b.logger.Info("device announced", "device", ann.Device.Name, "entities", len(ann.Entities))
	return nil
}

// handleState folds a state report into a discovery upsert for the
// announcing device. Reports for entities that never announced are
// dropped with a warning; the device should re-announce first.
func (b *Bridge) handleState(topic string, payload []byte) error {
	key := strings.TrimPrefix(topic, mqtt.TopicPrefix+"/state/")
	if key == "" || key == topic {
		return fmt.Errorf("unexpected state topic %s", topic)
	}

	var report stateReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return fmt.Errorf("decoding state report on %s: %w", topic, err)
	}

	b.mu.Lock()
	ctx, ic := b.ctx, b.ic
	dev, ok := b.known[key]
	b.mu.Unlock()
	if !ok {
		b.logger.Warn("state report for unannounced entity", "entity_id", key)
		return nil
	}

	disc := integration.DiscoveredDevice{
		Device: device.Device{
			Name:         dev.Name,
			Manufacturer: dev.Manufacturer,
			Model:        dev.Model,
			UniqueID:     dev.UniqueID,
		},
		Entities: []entity.Entity{{
			EntityID:   key,
			State:      entity.State(report.State),
			Attributes: report.Attributes,
		}},
	}
	if err := ic.UpsertDiscovered(ctx, disc); err != nil {
		return fmt.Errorf("upserting state for %s: %w", key, err)
	}
	return nil
}
