package quota

import (
	"context"
	"sync"
	"time"

	"finsight/internal/metrics"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

// Config carries the per-window call budgets.
type Config struct {
	MaxDailyRequests  int
	MaxHourlyRequests int
}

// Status is a point-in-time snapshot of both active windows.
type Status struct {
	Available       bool `json:"available"`
	DailyUsed       int  `json:"daily_used"`
	DailyLimit      int  `json:"daily_limit"`
	DailyRemaining  int  `json:"daily_remaining"`
	HourlyUsed      int  `json:"hourly_used"`
	HourlyLimit     int  `json:"hourly_limit"`
	HourlyRemaining int  `json:"hourly_remaining"`
	Requested       int  `json:"requested"`
}

// Gate bounds how many AI model calls may happen per hour and per day.
// All operations run under one mutex: TryReserve is check-and-increment in
// a single critical section, closing the check-then-act race that separate
// CheckAvailable/RecordUsage calls would leave open.
type Gate struct {
	mu    sync.Mutex
	state State
	store Store
	cfg   Config
	clock func() time.Time
	log   *logger.Logger
}

// NewGate creates a gate backed by store. Persisted usage is loaded up
// front; a corrupt or unreadable store logs a warning and starts fresh
// rather than blocking startup.
func NewGate(store Store, cfg Config) *Gate {
	g := &Gate{
		store: store,
		cfg:   cfg,
		clock: time.Now,
		log:   logger.Get().With("component", "quota_gate"),
	}

	state, err := store.Load(context.Background())
	if err != nil {
		g.log.Warnf("Could not load quota state, starting empty: %v", err)
	}
	g.state = state

	return g
}

// SetClock overrides the time source. Used by tests to cross window
// boundaries deterministically.
func (g *Gate) SetClock(clock func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clock = clock
}

// CheckAvailable reports whether requested calls fit in both the current
// hourly and daily windows. Counters are not mutated; stale windows are
// pruned opportunistically.
func (g *Gate) CheckAvailable(requested int) Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	g.state.prune(now)

	return g.statusLocked(now, requested)
}

// RecordUsage increments both current windows by count and persists.
// Callers are expected to have seen an affirmative CheckAvailable first;
// the gate does not verify that ordering. Prefer TryReserve, which does.
func (g *Gate) RecordUsage(ctx context.Context, count int) error {
	if count <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return g.recordLocked(ctx, count)
}

// TryReserve atomically checks and claims count calls from both windows.
// On success the usage is already recorded and persisted. On refusal the
// returned status carries the remaining/limit numbers for the caller.
func (g *Gate) TryReserve(ctx context.Context, count int) (Status, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	g.state.prune(now)

	st := g.statusLocked(now, count)
	if !st.Available {
		metrics.QuotaRejections.Inc()
		return st, false
	}

	if err := g.recordLocked(ctx, count); err != nil {
		g.log.Errorf("Failed to persist quota usage: %v", err)
	}

	return g.statusLocked(now, count), true
}

// Cleanup prunes expired windows and persists the trimmed state.
func (g *Gate) Cleanup(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.prune(g.clock())
	if err := g.store.Save(ctx, g.state); err != nil {
		g.log.Warnf("Could not save quota state after cleanup: %v", err)
	}
}

// UsageStats returns the current quota status plus configured limits,
// for status endpoints and operator tooling.
func (g *Gate) UsageStats() map[string]any {
	status := g.CheckAvailable(1)

	return map[string]any{
		"quota_status": status,
		"settings": map[string]any{
			"max_daily_requests":  g.cfg.MaxDailyRequests,
			"max_hourly_requests": g.cfg.MaxHourlyRequests,
		},
	}
}

// QuotaError builds the soft quota-exceeded error for a refused status.
func QuotaError(st Status) error {
	return errors.Wrapf(errors.ErrQuotaExceeded,
		"daily %d/%d, hourly %d/%d, requested %d",
		st.DailyUsed, st.DailyLimit, st.HourlyUsed, st.HourlyLimit, st.Requested)
}

func (g *Gate) statusLocked(now time.Time, requested int) Status {
	day := Window{
		Scope: ScopeDay,
		Key:   dayKey(now),
		Used:  g.state.Daily[dayKey(now)],
		Limit: g.cfg.MaxDailyRequests,
	}
	hour := Window{
		Scope: ScopeHour,
		Key:   hourKey(now),
		Used:  g.state.Hourly[hourKey(now)],
		Limit: g.cfg.MaxHourlyRequests,
	}

	return Status{
		Available:       day.Remaining() >= requested && hour.Remaining() >= requested,
		DailyUsed:       day.Used,
		DailyLimit:      day.Limit,
		DailyRemaining:  day.Remaining(),
		HourlyUsed:      hour.Used,
		HourlyLimit:     hour.Limit,
		HourlyRemaining: hour.Remaining(),
		Requested:       requested,
	}
}

func (g *Gate) recordLocked(ctx context.Context, count int) error {
	now := g.clock()
	g.state.prune(now)

	g.state.Daily[dayKey(now)] += count
	g.state.Hourly[hourKey(now)] += count
	g.state.LastUsage = now

	metrics.QuotaUsage.WithLabelValues(string(ScopeDay)).Set(float64(g.state.Daily[dayKey(now)]))
	metrics.QuotaUsage.WithLabelValues(string(ScopeHour)).Set(float64(g.state.Hourly[hourKey(now)]))

	g.log.Infof("Recorded %d AI requests. Daily: %d/%d, Hourly: %d/%d",
		count, g.state.Daily[dayKey(now)], g.cfg.MaxDailyRequests,
		g.state.Hourly[hourKey(now)], g.cfg.MaxHourlyRequests)

	return g.store.Save(ctx, g.state)
}
