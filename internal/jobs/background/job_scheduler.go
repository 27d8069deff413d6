package background

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stockledger/internal/caching"
	"stockledger/internal/config"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

const reconcileLockTTL = 30 * time.Minute

// Drainer delivers queued outbox messages
type Drainer interface {
	Drain(ctx context.Context) (int, error)
}

// Reconciler rebuilds current stock rows that drifted from their ledger
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// Intervals configures how often each job runs
type Intervals struct {
	Outbox    time.Duration
	Reconcile time.Duration
}

// JobScheduler runs the background jobs of one instance. Reconciliation is
// guarded by a cross-instance lock; the outbox drain relies on SKIP LOCKED.
type JobScheduler struct {
	scheduler  gocron.Scheduler
	drainer    Drainer
	reconciler Reconciler
	locker     caching.Locker
	logger     *logrus.Logger
	jobs       map[string]gocron.Job
	mu         sync.RWMutex
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler(drainer Drainer, reconciler Reconciler, locker caching.Locker, intervals Intervals, logger *logrus.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler:  scheduler,
		drainer:    drainer,
		reconciler: reconciler,
		locker:     locker,
		logger:     logger,
		jobs:       make(map[string]gocron.Job),
	}

	if err := js.registerJobs(intervals); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	js.logger.WithField("module", "scheduler").Info("Starting background job scheduler")
	js.scheduler.Start()
}

// Stop stops the job scheduler and waits for running jobs
func (js *JobScheduler) Stop() error {
	js.logger.WithField("module", "scheduler").Info("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs(intervals Intervals) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	// Outbox drain
	outboxJob, err := js.scheduler.NewJob(
		gocron.DurationJob(intervals.Outbox),
		gocron.NewTask(js.drainOutbox, context.Background()),
		gocron.WithName("outbox-drain"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox job: %w", err)
	}
	js.jobs["outbox-drain"] = outboxJob

	// Stock reconciliation
	reconcileJob, err := js.scheduler.NewJob(
		gocron.DurationJob(intervals.Reconcile),
		gocron.NewTask(js.reconcileStock, context.Background()),
		gocron.WithName("stock-reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create reconcile job: %w", err)
	}
	js.jobs["stock-reconcile"] = reconcileJob

	js.logger.WithFields(logrus.Fields{
		"module": "scheduler",
		"jobs":   len(js.jobs),
	}).Info("Registered background jobs")
	return nil
}

func (js *JobScheduler) drainOutbox(ctx context.Context) error {
	sent, err := js.drainer.Drain(ctx)
	if err != nil {
		config.LogError(js.logger, "jobs/background/job_scheduler.go", "drainOutbox", "drain outbox", nil, err)
		return err
	}
	if sent > 0 {
		js.logger.WithFields(logrus.Fields{"module": "scheduler", "sent": sent}).Debug("Outbox drained")
	}
	return nil
}

// reconcileStock runs on at most one instance at a time; a busy lock skips the run
func (js *JobScheduler) reconcileStock(ctx context.Context) error {
	var rebuilt int
	err := js.locker.WithLock(ctx, caching.ReconcileLockKey, reconcileLockTTL, func(ctx context.Context) error {
		var err error
		rebuilt, err = js.reconciler.Reconcile(ctx)
		return err
	})
	if errors.Is(err, caching.ErrLockBusy) {
		js.logger.WithField("module", "scheduler").Debug("Stock reconciliation already running elsewhere")
		return nil
	}
	if err != nil {
		config.LogError(js.logger, "jobs/background/job_scheduler.go", "reconcileStock", "reconcile stock", nil, err)
		return err
	}

	js.logger.WithFields(logrus.Fields{
		"module":  "scheduler",
		"rebuilt": rebuilt,
	}).Info("Stock reconciliation finished")
	return nil
}

// GetJobStatus returns information about scheduled jobs
func (js *JobScheduler) GetJobStatus() map[string]interface{} {
	js.mu.RLock()
	defer js.mu.RUnlock()

	jobs := make([]map[string]interface{}, 0, len(js.jobs))
	for name, job := range js.jobs {
		entry := map[string]interface{}{"name": name}
		if next, err := job.NextRun(); err == nil {
			entry["next_run"] = next
		}
		if last, err := job.LastRun(); err == nil && !last.IsZero() {
			entry["last_run"] = last
		}
		jobs = append(jobs, entry)
	}

	return map[string]interface{}{
		"total_jobs": len(js.jobs),
		"jobs":       jobs,
	}
}
