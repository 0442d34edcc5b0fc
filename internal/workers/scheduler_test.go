package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/adapters/config"
	"finsight/internal/orchestrator"
	"finsight/internal/quota"
)

type countingWorker struct {
	*BaseWorker
	runs atomic.Int64
}

func newCountingWorker(enabled bool) *countingWorker {
	return &countingWorker{
		BaseWorker: NewBaseWorker("counting", time.Hour, enabled),
	}
}

func (w *countingWorker) Run(context.Context) error {
	w.runs.Add(1)
	return nil
}

func TestSchedulerRunsEnabledWorkerImmediately(t *testing.T) {
	s := NewScheduler()
	w := newCountingWorker(true)
	s.RegisterWorker(w)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return w.runs.Load() >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestSchedulerSkipsDisabledWorker(t *testing.T) {
	s := NewScheduler()
	w := newCountingWorker(false)
	s.RegisterWorker(w)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, w.runs.Load())
}

func TestSchedulerDoubleStartRejected(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Error(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
}

func TestSchedulerStopBeforeStart(t *testing.T) {
	s := NewScheduler()
	assert.Error(t, s.Stop())
}

type stubRunner struct {
	identities []string
	status     orchestrator.Status
}

func (r *stubRunner) ExecuteComprehensiveAnalysis(_ context.Context, _ map[string]any, identity string) *orchestrator.WorkflowRun {
	r.identities = append(r.identities, identity)
	return &orchestrator.WorkflowRun{Status: r.status}
}

type stubChecker struct {
	available bool
}

func (c *stubChecker) CheckAvailable(requested int) quota.Status {
	return quota.Status{Available: c.available, Requested: requested}
}

func TestAnalysisWorkerRunsEachIdentity(t *testing.T) {
	runner := &stubRunner{status: orchestrator.StatusCompleted}
	w := NewAnalysisWorker(runner, &stubChecker{available: true}, config.SchedulerConfig{
		Enabled:          true,
		AnalysisInterval: time.Hour,
		Identities:       []string{"1111111111", "2222222222"},
	})

	require.True(t, w.Enabled())
	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, []string{"1111111111", "2222222222"}, runner.identities)
}

func TestAnalysisWorkerDisabledWhenOnDemandOnly(t *testing.T) {
	w := NewAnalysisWorker(&stubRunner{}, &stubChecker{}, config.SchedulerConfig{
		Enabled:          true,
		OnDemandOnly:     true,
		AnalysisInterval: time.Hour,
		Identities:       []string{"1111111111"},
	})

	assert.False(t, w.Enabled())
}

func TestAnalysisWorkerStopsWhenQuotaLow(t *testing.T) {
	runner := &stubRunner{status: orchestrator.StatusCompleted}
	w := NewAnalysisWorker(runner, &stubChecker{available: false}, config.SchedulerConfig{
		Enabled:          true,
		AnalysisInterval: time.Hour,
		Identities:       []string{"1111111111"},
	})

	require.NoError(t, w.Run(context.Background()))
	assert.Empty(t, runner.identities)
}

type cleanupSpy struct {
	cleanups int
}

func (c *cleanupSpy) Cleanup(context.Context) { c.cleanups++ }

func TestQuotaCleanupWorkerPrunesAndRecordsRun(t *testing.T) {
	spy := &cleanupSpy{}
	w := NewQuotaCleanupWorker(spy, 0)

	require.True(t, w.Enabled())
	assert.Equal(t, time.Hour, w.Interval())

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, 1, spy.cleanups)

	runs, errs, lastRun := w.Stats()
	assert.Equal(t, int64(1), runs)
	assert.Zero(t, errs)
	assert.False(t, lastRun.IsZero())
}

func TestAnalysisWorkerNoIdentities(t *testing.T) {
	runner := &stubRunner{}
	w := NewAnalysisWorker(runner, &stubChecker{available: true}, config.SchedulerConfig{
		Enabled:          true,
		AnalysisInterval: time.Hour,
	})

	require.NoError(t, w.Run(context.Background()))
	assert.Empty(t, runner.identities)
}
