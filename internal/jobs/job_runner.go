package jobs

import (
	"context"
	"time"

	"drivekr-wallet-backend/internal/config"
	"drivekr-wallet-backend/internal/logger"
	"drivekr-wallet-backend/internal/repository"
	"drivekr-wallet-backend/internal/service"
)

const (
	// Notifications younger than this may still be in their first delivery attempt.
	retryGracePeriod = time.Minute
	retryBatchSize   = 200
	reminderBatch    = 200
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	store      repository.Store
	dispatcher service.NotificationDispatcher
	config     *config.Config
	now        func() time.Time
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(store repository.Store, dispatcher service.NotificationDispatcher, cfg *config.Config) *JobRunner {
	return &JobRunner{
		store:      store,
		dispatcher: dispatcher,
		config:     cfg,
		now:        time.Now,
	}
}

// Config exposes the configuration the scheduler reads cron specs from.
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context) (int, error)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	start := time.Now()
	n, err := jobFunc(context.Background())
	if err != nil {
		logger.Error("Job failed", "job", jobName, "processed", n, "error", err)
		return
	}
	logger.Info("Job completed", "job", jobName, "processed", n, "duration", time.Since(start))
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.RetryFailedNotifications()
	jr.RemindPendingTransactions()
}
