package history

import (
	"context"
	"time"

	"github.com/minihub-dev/minihub-core/internal/event"
)

// Purger deletes history snapshots and event log rows older than the
// retention window. Pure deletion, no archival.
type Purger struct {
	history   Repository
	events    event.Repository
	retention time.Duration
	interval  time.Duration
	logger    Logger

	now func() time.Time
}

// NewPurger creates a retention purger.
func NewPurger(history Repository, events event.Repository, retention, interval time.Duration) *Purger {
	return &Purger{
		history:   history,
		events:    events,
		retention: retention,
		interval:  interval,
		logger:    noopLogger{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the purger.
func (p *Purger) SetLogger(logger Logger) {
	p.logger = logger
}

// Run purges once immediately, then on every interval tick until the
// context is cancelled. It blocks; call it from its own goroutine.
func (p *Purger) Run(ctx context.Context) {
	p.logger.Info("retention purger started",
		"retention", p.retention.String(), "interval", p.interval.String())

	if err := p.PurgeOnce(ctx); err != nil {
		p.logger.Error("purge failed", "error", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("retention purger stopping")
			return
		case <-ticker.C:
			if err := p.PurgeOnce(ctx); err != nil {
				p.logger.Error("purge failed", "error", err)
			}
		}
	}
}

// PurgeOnce deletes everything older than the retention window.
func (p *Purger) PurgeOnce(ctx context.Context) error {
	cutoff := p.now().Add(-p.retention)

	snapshots, err := p.history.PurgeBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	events, err := p.events.PurgeBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	if snapshots > 0 || events > 0 {
		p.logger.Info("purged history", "snapshots", snapshots, "events", events, "cutoff", cutoff)
	}
	return nil
}
