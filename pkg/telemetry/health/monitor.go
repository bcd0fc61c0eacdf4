package health

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/telemetry/metrics"
)

// Overall status values of a Snapshot.
const (
	StatusUnknown   = "unknown"
	StatusOK        = "ok"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Prober validates the credentials of every initialized adapter.
// *dispatcher.Dispatcher satisfies it.
type Prober interface {
	ValidateAllCredentials(ctx context.Context) map[providers.Kind]bool
}

// ProviderStatus is the last probe result of one adapter.
type ProviderStatus struct {
	Healthy             bool      `json:"healthy"`
	CheckedAt           time.Time `json:"checked_at"`
	ConsecutiveFailures int       `json:"consecutive_failures,omitempty"`

	// LastHealthy is zero when the adapter never passed a probe
	LastHealthy time.Time `json:"last_healthy,omitempty"`
}

// Snapshot is the outcome of the latest probe round.
type Snapshot struct {
	// Status is "ok", "degraded", "unhealthy" or "unknown" (never probed)
	Status    string                            `json:"status"`
	Providers map[providers.Kind]ProviderStatus `json:"providers"`
	CheckedAt time.Time                         `json:"checked_at,omitempty"`
	Duration  time.Duration                     `json:"duration_ns,omitempty"`
}

// Healthy returns the kinds that passed the latest probe, sorted.
func (s Snapshot) Healthy() []providers.Kind {
	var kinds []providers.Kind
	for kind, st := range s.Providers {
		if st.Healthy {
			kinds = append(kinds, kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Monitor probes provider credentials on a cron schedule, keeps the latest
// Snapshot and mirrors each result into the provider_health gauge.
type Monitor struct {
	prober       Prober
	metrics      *metrics.Collector
	schedule     string
	probeTimeout time.Duration

	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool

	snapMu   sync.RWMutex
	snapshot Snapshot
}

// NewMonitor creates a monitor. Empty schedule and timeout fall back to the
// config defaults. collector may be nil.
func NewMonitor(prober Prober, collector *metrics.Collector, cfg config.HealthConfig) *Monitor {
	if cfg.Schedule == "" {
		cfg.Schedule = config.DefaultHealthSchedule
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = config.DefaultHealthProbeTimeout
	}

	return &Monitor{
		prober:       prober,
		metrics:      collector,
		schedule:     cfg.Schedule,
		probeTimeout: cfg.ProbeTimeout,
		cron:         cron.New(),
		logger:       slog.Default().With("component", "health.monitor"),
		snapshot: Snapshot{
			Status:    StatusUnknown,
			Providers: map[providers.Kind]ProviderStatus{},
		},
	}
}

// Probe runs one round of credential probes, bounded by the probe timeout,
// and returns the new snapshot.
func (m *Monitor) Probe(ctx context.Context) Snapshot {
	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	start := time.Now()
	results := m.prober.ValidateAllCredentials(ctx)
	now := time.Now()

	m.snapMu.Lock()
	previous := m.snapshot.Providers
	next := Snapshot{
		Providers: make(map[providers.Kind]ProviderStatus, len(results)),
		CheckedAt: now,
		Duration:  now.Sub(start),
	}

	healthy := 0
	for kind, ok := range results {
		prev := previous[kind]
		st := ProviderStatus{
			Healthy:     ok,
			CheckedAt:   now,
			LastHealthy: prev.LastHealthy,
		}
		if ok {
			healthy++
			st.LastHealthy = now
		} else {
			st.ConsecutiveFailures = prev.ConsecutiveFailures + 1
		}
		next.Providers[kind] = st

		if prev.CheckedAt.IsZero() || prev.Healthy != ok {
			m.logger.Info("provider health changed", "kind", kind, "healthy", ok)
		}
		m.metrics.UpdateProviderHealth(string(kind), ok)
	}
	next.Status = overallStatus(healthy, len(results))

	m.snapshot = next
	m.snapMu.Unlock()

	m.logger.Debug("health probe completed",
		"status", next.Status,
		"healthy", healthy,
		"total", len(results),
		"duration", next.Duration,
	)
	return next
}

func overallStatus(healthy, total int) string {
	switch {
	case total == 0:
		return StatusUnknown
	case healthy == total:
		return StatusOK
	case healthy == 0:
		return StatusUnhealthy
	default:
		return StatusDegraded
	}
}

// Snapshot returns the latest probe result.
func (m *Monitor) Snapshot() Snapshot {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()

	out := m.snapshot
	out.Providers = make(map[providers.Kind]ProviderStatus, len(m.snapshot.Providers))
	for kind, st := range m.snapshot.Providers {
		out.Providers[kind] = st
	}
	return out
}

// Start probes once in the background and then on the configured schedule.
// It returns immediately; probing stops when ctx is cancelled or Stop is
// called.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("health monitor already running")
	}

	if _, err := cron.ParseStandard(m.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", m.schedule, err)
	}

	if _, err := m.cron.AddFunc(m.schedule, func() { m.Probe(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule health probes: %w", err)
	}

	m.cron.Start()
	m.running = true

	m.logger.Info("health monitor started",
		"schedule", m.schedule,
		"probe_timeout", m.probeTimeout,
	)

	go m.Probe(ctx)
	go func() {
		<-ctx.Done()
		m.Stop()
	}()

	return nil
}

// Stop stops the schedule and waits for a running probe to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		<-m.cron.Stop().Done()
		m.running = false
		m.logger.Info("health monitor stopped")
	}
}

// IsRunning returns true if the schedule is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// NextRun returns the next scheduled probe, or zero time when not running.
func (m *Monitor) NextRun() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return time.Time{}
	}
	entries := m.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
