package workers

import (
	"context"
	"sync"
	"time"

	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

// Scheduler runs registered workers on their intervals until stopped.
type Scheduler struct {
	workers []Worker
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	log     *logger.Logger
	started bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		workers: make([]Worker, 0),
		log:     logger.Get().With("component", "scheduler"),
	}
}

// RegisterWorker adds a worker. Registration after Start is ignored.
func (s *Scheduler) RegisterWorker(w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.log.Warnf("Cannot register worker %s after scheduler has started", w.Name())
		return
	}

	s.workers = append(s.workers, w)
	s.log.Infof("Worker registered: %s (interval %s)", w.Name(), w.Interval())
}

// Start launches every enabled worker in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.Wrap(errors.ErrInternal, "scheduler already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	for _, worker := range s.workers {
		if !worker.Enabled() {
			s.log.Infof("Skipping disabled worker: %s", worker.Name())
			continue
		}
		s.wg.Add(1)
		go s.runWorker(worker)
	}

	s.log.Infof("Scheduler started with %d workers", len(s.workers))
	return nil
}

// Stop cancels all workers and waits for them to finish, bounded by a
// timeout so a hung AI call cannot block shutdown forever.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.Wrap(errors.ErrInternal, "scheduler not started")
	}
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var shutdownErr error
	select {
	case <-done:
		s.log.Info("All workers stopped")
	case <-time.After(2 * time.Minute):
		s.log.Warn("Worker shutdown timed out after 2 minutes")
		shutdownErr = errors.Wrap(errors.ErrTimeout, "worker shutdown")
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	return shutdownErr
}

// IsRunning reports whether the scheduler has been started.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func (s *Scheduler) runWorker(worker Worker) {
	defer s.wg.Done()

	ticker := time.NewTicker(worker.Interval())
	defer ticker.Stop()

	// First iteration runs immediately.
	s.executeWorker(worker)

	for {
		select {
		case <-s.ctx.Done():
			s.log.Infof("Worker %s stopping", worker.Name())
			return
		case <-ticker.C:
			s.executeWorker(worker)
		}
	}
}

func (s *Scheduler) executeWorker(worker Worker) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("Worker %s panicked: %v", worker.Name(), r)
		}
	}()

	if err := worker.Run(s.ctx); err != nil {
		s.log.Errorf("Worker %s failed after %s: %v", worker.Name(), time.Since(start).Round(time.Millisecond), err)
	} else {
		s.log.Debugf("Worker %s completed in %s", worker.Name(), time.Since(start).Round(time.Millisecond))
	}
}
