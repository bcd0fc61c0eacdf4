package usage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/conduit/pkg/config"
)

// NewStore builds the store selected by cfg.Backend.
func NewStore(cfg config.UsageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(0), nil
	case "sqlite":
		return NewSQLiteStore(SQLiteStoreConfig{Path: cfg.Path, BusyTimeout: cfg.BusyTimeout})
	default:
		return nil, fmt.Errorf("unknown usage backend %q", cfg.Backend)
	}
}

// Pruner deletes records older than the retention period on a cron schedule.
type Pruner struct {
	store     Store
	retention time.Duration
	schedule  string
	now       func() time.Time

	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewPruner creates a pruner keeping retentionDays of records. A
// non-positive retentionDays disables pruning.
func NewPruner(store Store, retentionDays int, schedule string) *Pruner {
	return &Pruner{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		schedule:  schedule,
		now:       time.Now,
		cron:      cron.New(),
		logger:    slog.Default().With("component", "usage.pruner"),
	}
}

// Prune deletes expired records once.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	if p.retention <= 0 {
		return 0, nil
	}
	return p.store.Cleanup(ctx, p.now().Add(-p.retention))
}

// Start schedules Prune. It returns immediately; the schedule stops when ctx
// is cancelled or Stop is called.
//
// Common cron expressions:
//   - "0 3 * * *"    - Daily at 3 AM
//   - "0 */6 * * *"  - Every 6 hours
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.retention <= 0 || p.schedule == "" {
		p.logger.Info("usage retention disabled, skipping pruner")
		return nil
	}

	if _, err := cron.ParseStandard(p.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", p.schedule, err)
	}

	if _, err := p.cron.AddFunc(p.schedule, func() { p.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true

	p.logger.Info("usage pruner started",
		"schedule", p.schedule,
		"retention", p.retention,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

func (p *Pruner) run(ctx context.Context) {
	deleted, err := p.Prune(ctx)
	if err != nil {
		p.logger.Error("scheduled usage pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		p.logger.Info("scheduled usage pruning completed", "deleted_count", deleted)
	} else {
		p.logger.Debug("scheduled usage pruning completed, no records deleted")
	}
}

// Stop stops the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		<-p.cron.Stop().Done()
		p.running = false
		p.logger.Info("usage pruner stopped")
	}
}

// IsRunning returns true if the schedule is active.
func (p *Pruner) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
