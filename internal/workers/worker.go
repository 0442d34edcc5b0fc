package workers

import (
	"context"
	"sync"
	"time"

	"finsight/pkg/logger"
)

// Worker is a periodic background task. The scheduler calls Run once
// per Interval.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
	Interval() time.Duration
	Enabled() bool
}

// BaseWorker carries the common plumbing: identity, cadence, enablement
// and run statistics.
type BaseWorker struct {
	name     string
	interval time.Duration
	log      *logger.Logger

	mu        sync.RWMutex
	enabled   bool
	lastRun   time.Time
	lastError error
	runCount  int64
	errCount  int64
}

// NewBaseWorker creates a base worker.
func NewBaseWorker(name string, interval time.Duration, enabled bool) *BaseWorker {
	return &BaseWorker{
		name:     name,
		interval: interval,
		enabled:  enabled,
		log:      logger.Get().With("worker", name),
	}
}

// Name returns the worker name.
func (w *BaseWorker) Name() string { return w.name }

// Interval returns the run cadence.
func (w *BaseWorker) Interval() time.Duration { return w.interval }

// Enabled reports whether the worker should run.
func (w *BaseWorker) Enabled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.enabled
}

// SetEnabled updates the enabled state.
func (w *BaseWorker) SetEnabled(enabled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enabled = enabled
	w.log.Infof("Worker enabled state changed to: %v", enabled)
}

// Log returns the worker's logger.
func (w *BaseWorker) Log() *logger.Logger { return w.log }

// RecordRun records a completed iteration.
func (w *BaseWorker) RecordRun(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastRun = time.Now()
	w.lastError = err
	w.runCount++
	if err != nil {
		w.errCount++
	}
}

// Stats returns run counts for monitoring.
func (w *BaseWorker) Stats() (runs, errs int64, lastRun time.Time) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.runCount, w.errCount, w.lastRun
}
