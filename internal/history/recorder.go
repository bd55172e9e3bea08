package history

import (
	"context"
	"errors"
	"time"

	"github.com/minihub-dev/minihub-core/internal/event"
)

// Logger defines the logging interface used by the history workers.
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

// EntitySnapshot is the minimal entity view the recorder needs.
type EntitySnapshot struct {
	State      string
	Attributes map[string]any
}

// EntityReader provides the current snapshot of an entity.
type EntityReader interface {
	Snapshot(ctx context.Context, entityID string) (EntitySnapshot, error)
}

// MetricWriter receives numeric samples for the time-series store.
// Implemented by the tsdb client; may be nil when the store is disabled.
type MetricWriter interface {
	WriteEntityMetricAt(entityKey, measurement string, value float64, timestamp time.Time)
	WriteStateTransition(entityKey, from, to string, timestamp time.Time)
}

// Recorder consumes the bus and persists history.
//
// Every event is appended to the durable event log. state_changed and
// attribute_changed events additionally produce a snapshot row of the
// entity's current state and attributes, stamped with the event's own
// timestamp, plus numeric samples for the time-series store. The bus is
// best-effort: on lag the recorder logs the gap and resumes, it never
// backfills.
type Recorder struct {
	bus      *event.Bus
	events   event.Repository
	history  Repository
	entities EntityReader
	metrics  MetricWriter
	logger   Logger
}

// NewRecorder creates a history recorder. metrics may be nil.
func NewRecorder(bus *event.Bus, events event.Repository, history Repository, entities EntityReader, metrics MetricWriter) *Recorder {
	return &Recorder{
		bus:      bus,
		events:   events,
		history:  history,
		entities: entities,
		metrics:  metrics,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Run consumes the bus until the context is cancelled or the bus closes.
// It blocks; call it from its own goroutine.
func (r *Recorder) Run(ctx context.Context) {
	sub := r.bus.Subscribe()
	defer sub.Close()

	r.logger.Info("history recorder started")
	for {
		ev, err := sub.Recv(ctx)
		if err != nil {
			var lag *event.LagError
			if errors.As(err, &lag) {
				r.logger.Warn("history recorder lagged", "missed", lag.Missed)
				continue
			}
			r.logger.Info("history recorder stopping")
			return
		}
		r.record(ctx, ev)
	}
}

// record persists one event. Failures are logged, never fatal: a history
// gap degrades charts, not the hub.
func (r *Recorder) record(ctx context.Context, ev event.Event) {
	if err := r.events.Insert(ctx, ev); err != nil {
		r.logger.Error("appending event log", "type", ev.Type, "error", err)
	}

	if ev.Type != event.TypeStateChanged && ev.Type != event.TypeAttributeChanged {
		return
	}
	if ev.EntityID == "" {
		return
	}

	snap, err := r.entities.Snapshot(ctx, ev.EntityID)
	if err != nil {
		// The entity may have been deleted between publish and here.
		r.logger.Warn("skipping snapshot", "entity_id", ev.EntityID, "error", err)
		return
	}

	row := EntityHistory{
		ID:         GenerateID(),
		EntityID:   ev.EntityID,
		State:      snap.State,
		Attributes: snap.Attributes,
		RecordedAt: ev.Timestamp,
	}
	if err := r.history.Insert(ctx, row); err != nil {
		r.logger.Error("inserting history snapshot", "entity_id", ev.EntityID, "error", err)
		return
	}

	r.writeMetrics(ev, snap)
}

// writeMetrics pushes numeric samples to the time-series store.
func (r *Recorder) writeMetrics(ev event.Event, snap EntitySnapshot) {
	if r.metrics == nil {
		return
	}

	if ev.Type == event.TypeStateChanged {
		from, _ := ev.Data["from"].(string)
		to, _ := ev.Data["to"].(string)
		r.metrics.WriteStateTransition(ev.EntityID, from, to, ev.Timestamp)
	}

	for name, v := range snap.Attributes {
		if value, ok := numericValue(v); ok {
			r.metrics.WriteEntityMetricAt(ev.EntityID, name, value, ev.Timestamp)
		}
	}
}

// numericValue extracts a float64 from the attribute value types that
// survive a JSON round trip.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
