package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/minihub-dev/minihub-core/internal/event"
)

// Logger defines the logging interface used by the Engine.
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

// ServiceCaller routes a call_service action to whatever owns the target
// entity: the integration manager for integration-owned entities, the
// entity authority otherwise.
type ServiceCaller interface {
	CallService(ctx context.Context, entityID, service string, data map[string]any) error
}

// StateReader reports the current state of an entity, used by state_is
// conditions.
type StateReader interface {
	CurrentState(ctx context.Context, entityID string) (string, error)
}

// defaultTickInterval is how often time_pattern triggers are checked.
// Standard cron resolution is one minute, so checking more often buys
// nothing.
const defaultTickInterval = time.Minute

// Engine evaluates automations against the event stream.
//
// One goroutine consumes the bus and matches state_changed triggers; a
// ticker drives time_pattern triggers. Every matching automation runs in
// its own goroutine so a Delay action suspends only that automation's
// run. A failure in one run is logged and never stops the engine or
// other runs.
type Engine struct {
	repo     Repository
	services ServiceCaller
	states   StateReader
	bus      *event.Bus
	logger   Logger

	// now and tickInterval are swappable for tests.
	now          func() time.Time
	tickInterval time.Duration

	wg sync.WaitGroup
}

// NewEngine creates an automation engine.
func NewEngine(repo Repository, services ServiceCaller, states StateReader, bus *event.Bus) *Engine {
	return &Engine{
		repo:         repo,
		services:     services,
		states:       states,
		bus:          bus,
		logger:       noopLogger{},
		now:          func() time.Time { return time.Now().UTC() },
		tickInterval: defaultTickInterval,
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// Run consumes the event bus until the context is cancelled or the bus
// closes. It blocks; call it from its own goroutine. In-flight automation
// runs are waited for before Run returns.
func (e *Engine) Run(ctx context.Context) {
	sub := e.bus.Subscribe()
	defer sub.Close()

	tickCtx, stopTicker := context.WithCancel(ctx)
	defer stopTicker()
	e.wg.Add(1)
	go e.runTicker(tickCtx)

	e.logger.Info("automation engine started")
	for {
		ev, err := sub.Recv(ctx)
		if err != nil {
			var lag *event.LagError
			if errors.As(err, &lag) {
				// Best-effort stream: log the gap and keep consuming.
				e.logger.Warn("automation engine lagged", "missed", lag.Missed)
				continue
			}
			break
		}
		e.handleEvent(ctx, ev)
	}

	e.logger.Info("automation engine stopping")
	e.wg.Wait()
}

// handleEvent fans one bus event out to every enabled automation whose
// trigger matches.
func (e *Engine) handleEvent(ctx context.Context, ev event.Event) {
	if ev.Type != event.TypeStateChanged {
		return
	}

	automations, err := e.repo.ListEnabled(ctx)
	if err != nil {
		e.logger.Error("listing automations", "error", err)
		return
	}

	for i := range automations {
		a := automations[i].DeepCopy()
		if !matchesStateTrigger(&a.Trigger, ev) {
			continue
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.runAutomation(ctx, a); err != nil {
				e.logger.Error("automation run failed", "id", a.ID, "name", a.Name, "error", err)
			}
		}()
	}
}

// runTicker drives time_pattern triggers. A pattern fires when its next
// activation after the previous tick is not in the future.
func (e *Engine) runTicker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	lastTick := e.now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := e.now()
		e.fireTimePatterns(ctx, lastTick, now)
		lastTick = now
	}
}

// fireTimePatterns runs every enabled time_pattern automation whose
// schedule has an activation in (lastTick, now].
func (e *Engine) fireTimePatterns(ctx context.Context, lastTick, now time.Time) {
	automations, err := e.repo.ListEnabled(ctx)
	if err != nil {
		e.logger.Error("listing automations", "error", err)
		return
	}

	for i := range automations {
		a := automations[i].DeepCopy()
		if a.Trigger.Type != TriggerTimePattern {
			continue
		}
		sched, err := cron.ParseStandard(a.Trigger.Schedule)
		if err != nil {
			// Validation should have caught this; skip rather than crash.
			e.logger.Error("bad schedule", "id", a.ID, "schedule", a.Trigger.Schedule, "error", err)
			continue
		}
		if sched.Next(lastTick).After(now) {
			continue
		}

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.runAutomation(ctx, a); err != nil {
				e.logger.Error("automation run failed", "id", a.ID, "name", a.Name, "error", err)
			}
		}()
	}
}

// TriggerManual runs a manual automation immediately and synchronously,
// returning the run's error to the caller. Disabled automations are
// rejected with ErrAutomationDisabled.
func (e *Engine) TriggerManual(ctx context.Context, id string) error {
	a, err := e.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !a.Enabled {
		return ErrAutomationDisabled
	}
	return e.runAutomation(ctx, a)
}

// runAutomation evaluates conditions and executes actions for one run.
// A panic in an action is contained here so one bad automation cannot
// take the engine down.
func (e *Engine) runAutomation(ctx context.Context, a *Automation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("automation %s panicked: %v", a.ID, r)
		}
	}()

	for i := range a.Conditions {
		ok, condErr := e.checkCondition(ctx, &a.Conditions[i])
		if condErr != nil {
			return fmt.Errorf("condition %d: %w", i, condErr)
		}
		if !ok {
			// Normal control flow: the automation simply does not fire.
			e.logger.Debug("condition not met", "id", a.ID, "condition", i)
			return nil
		}
	}

	for i := range a.Actions {
		if actErr := e.executeAction(ctx, &a.Actions[i]); actErr != nil {
			return fmt.Errorf("action %d: %w", i, actErr)
		}
	}

	now := e.now()
	if err := e.repo.SetLastTriggered(ctx, a.ID, now); err != nil {
		e.logger.Error("recording last_triggered", "id", a.ID, "error", err)
	}
	e.bus.Publish(event.New(event.TypeAutomationTriggered, "", map[string]any{
		"automation_id": a.ID,
		"name":          a.Name,
	}))
	e.logger.Info("automation triggered", "id", a.ID, "name", a.Name)
	return nil
}

// checkCondition evaluates one condition.
func (e *Engine) checkCondition(ctx context.Context, c *Condition) (bool, error) {
	switch c.Type {
	case ConditionStateIs:
		state, err := e.states.CurrentState(ctx, c.EntityID)
		if err != nil {
			return false, fmt.Errorf("reading state of %s: %w", c.EntityID, err)
		}
		return state == c.State, nil

	case ConditionTimeRange:
		return inTimeRange(e.now(), c.After, c.Before)

	default:
		return false, fmt.Errorf("%w: unknown type %q", ErrInvalidCondition, c.Type)
	}
}

// executeAction runs one action. Delay suspends only this goroutine.
func (e *Engine) executeAction(ctx context.Context, a *Action) error {
	switch a.Type {
	case ActionCallService:
		if err := e.services.CallService(ctx, a.EntityID, a.Service, a.Data); err != nil {
			return fmt.Errorf("calling %s on %s: %w", a.Service, a.EntityID, err)
		}
		return nil

	case ActionDelay:
		select {
		case <-time.After(time.Duration(a.DurationMS) * time.Millisecond):
			return nil
		case <-ctx.Done():
			return fmt.Errorf("delay interrupted: %w", ctx.Err())
		}

	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
	}
}

// matchesStateTrigger reports whether a state_changed event satisfies the
// trigger. Empty From/To match any transition endpoint.
func matchesStateTrigger(t *Trigger, ev event.Event) bool {
	if t.Type != TriggerStateChanged || t.EntityID != ev.EntityID {
		return false
	}
	from, _ := ev.Data["from"].(string)
	to, _ := ev.Data["to"].(string)
	if t.From != "" && t.From != from {
		return false
	}
	if t.To != "" && t.To != to {
		return false
	}
	return true
}

// inTimeRange reports whether now's time of day falls inside the window.
// A window whose after is later than its before crosses midnight
// (after 22:00, before 06:00). Equal endpoints cover the whole day.
func inTimeRange(now time.Time, after, before string) (bool, error) {
	start, err := parseClock(after)
	if err != nil {
		return false, fmt.Errorf("%w: bad after %q", ErrInvalidCondition, after)
	}
	end, err := parseClock(before)
	if err != nil {
		return false, fmt.Errorf("%w: bad before %q", ErrInvalidCondition, before)
	}

	cur := now.Hour()*60 + now.Minute()
	switch {
	case start == end:
		return true, nil
	case start < end:
		return cur >= start && cur < end, nil
	default:
		return cur >= start || cur < end, nil
	}
}
