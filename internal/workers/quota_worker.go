package workers

import (
	"context"
	"time"
)

// QuotaCleaner is the gate surface the cleanup worker needs.
type QuotaCleaner interface {
	Cleanup(ctx context.Context)
}

// QuotaCleanupWorker periodically prunes expired quota windows so the
// persisted usage state stays bounded between analysis runs.
type QuotaCleanupWorker struct {
	*BaseWorker
	gate QuotaCleaner
}

// NewQuotaCleanupWorker creates the cleanup worker. It always runs; the
// cost of a cleanup pass is one prune plus one state save.
func NewQuotaCleanupWorker(gate QuotaCleaner, interval time.Duration) *QuotaCleanupWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &QuotaCleanupWorker{
		BaseWorker: NewBaseWorker("quota_cleanup", interval, true),
		gate:       gate,
	}
}

// Run prunes expired quota windows and persists the trimmed state.
func (w *QuotaCleanupWorker) Run(ctx context.Context) error {
	w.gate.Cleanup(ctx)
	w.RecordRun(nil)
	return nil
}
