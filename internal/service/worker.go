package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/newsgate/newsgate/internal/config"
	"github.com/newsgate/newsgate/internal/models"
	"github.com/newsgate/newsgate/pkg/util"
)

// maxStoredErrorLen bounds error text persisted on jobs and publish logs.
const maxStoredErrorLen = 2000

// backoffSchedule maps attempt number (1-based) to the delay before the next
// retry; the last entry repeats for later attempts.
var backoffSchedule = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	60 * time.Minute,
	60 * time.Minute,
}

func backoffForAttempt(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(backoffSchedule) {
		attempt = len(backoffSchedule)
	}
	return backoffSchedule[attempt-1]
}

// PublishJobWorker claims due publish jobs on a fixed poll interval and
// drives them through the orchestrator. Multiple worker instances may run
// against the same database: the claim transaction is the only
// cross-process exclusion point, and external calls happen after it commits.
type PublishJobWorker struct {
	db           *gorm.DB
	orchestrator *PublisherOrchestrator
	logger       *zap.Logger
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	ticker       *time.Ticker
	stopCh       chan struct{}
	now          func() time.Time
}

func NewPublishJobWorker(cfg *config.WorkerConfig, db *gorm.DB, orchestrator *PublisherOrchestrator, logger *zap.Logger) (*PublishJobWorker, error) {
	interval, err := time.ParseDuration(cfg.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid poll interval %q: %w", cfg.PollInterval, err)
	}

	return &PublishJobWorker{
		db:           db,
		orchestrator: orchestrator,
		logger:       logger,
		pollInterval: interval,
		batchSize:    cfg.BatchSize,
		maxAttempts:  cfg.MaxAttempts,
		stopCh:       make(chan struct{}),
		now:          time.Now,
	}, nil
}

func (w *PublishJobWorker) Start(ctx context.Context) {
	w.logger.Info("Starting publish job worker",
		zap.Duration("poll_interval", w.pollInterval),
		zap.Int("batch_size", w.batchSize))

	w.ticker = time.NewTicker(w.pollInterval)

	go func() {
		for {
			select {
			case <-w.ticker.C:
				w.RunOnce(ctx)
			case <-w.stopCh:
				w.logger.Info("Publish job worker stopped")
				return
			case <-ctx.Done():
				w.logger.Info("Publish job worker context cancelled")
				return
			}
		}
	}()
}

func (w *PublishJobWorker) Stop() {
	if w.ticker != nil {
		w.ticker.Stop()
	}
	close(w.stopCh)
}

// RunOnce claims one batch of due jobs and processes it. One job's failure
// never aborts the rest of the batch.
func (w *PublishJobWorker) RunOnce(ctx context.Context) {
	jobs, err := w.claimDueJobs()
	if err != nil {
		w.logger.Error("Failed to claim due jobs", zap.Error(err))
		return
	}
	if len(jobs) == 0 {
		return
	}

	w.logger.Info("Claimed publish jobs", zap.Int("count", len(jobs)))

	for _, job := range jobs {
		w.processJob(ctx, job.ID)
	}
}

// claimDueJobs atomically flips a batch of due pending jobs to running. The
// select takes row locks and skips rows locked by a concurrent claimer
// (postgres); the flip is additionally filtered on the pending status so the
// claim degrades to a compare-and-swap on databases without SKIP LOCKED.
// The transaction commits before any external work starts.
func (w *PublishJobWorker) claimDueJobs() ([]models.PublishJob, error) {
	now := w.now().UTC()
	var claimed []models.PublishJob

	err := w.db.Transaction(func(tx *gorm.DB) error {
		query := tx.Where("status = ? AND scheduled_at <= ? AND (next_retry_at IS NULL OR next_retry_at <= ?)",
			models.JobStatusPending, now, now).
			Order("scheduled_at ASC").
			Limit(w.batchSize)
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var due []models.PublishJob
		if err := query.Find(&due).Error; err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}

		for i := range due {
			job := &due[i]
			result := tx.Model(&models.PublishJob{}).
				Where("id = ? AND status = ?", job.ID, models.JobStatusPending).
				Updates(map[string]interface{}{
					"status":          models.JobStatusRunning,
					"attempt_count":   gorm.Expr("attempt_count + 1"),
					"last_attempt_at": now,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 1 {
				claimed = append(claimed, *job)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// processJob reloads a claimed job, re-checks it is still ours, invokes the
// orchestrator, and settles the outcome. Panics are contained per job.
func (w *PublishJobWorker) processJob(ctx context.Context, jobID uint) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Publish job panicked",
				zap.Uint("job_id", jobID),
				zap.Any("panic", r))
			w.settleFailure(jobID, fmt.Sprintf("panic: %v", r))
		}
	}()

	var job models.PublishJob
	if err := w.db.First(&job, jobID).Error; err != nil {
		w.logger.Error("Failed to reload claimed job", zap.Uint("job_id", jobID), zap.Error(err))
		return
	}
	if job.Status != models.JobStatusRunning {
		// Defensive: the claim flip did not stick, leave it alone.
		w.logger.Warn("Claimed job is no longer running, skipping",
			zap.Uint("job_id", jobID),
			zap.String("status", string(job.Status)))
		return
	}

	result, err := w.orchestrator.Publish(ctx, job.ContentID, job.VersionNo, job.CreatedBy)
	if err != nil {
		w.settleFailure(jobID, err.Error())
		return
	}
	if !result.AllSucceeded {
		w.settleFailure(jobID, result.Error)
		return
	}

	now := w.now().UTC()
	if err := w.db.Model(&models.PublishJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":        models.JobStatusSucceeded,
			"completed_at":  now,
			"next_retry_at": nil,
			"last_error":    "",
		}).Error; err != nil {
		w.logger.Error("Failed to mark job succeeded", zap.Uint("job_id", jobID), zap.Error(err))
		return
	}

	w.logger.Info("Publish job succeeded",
		zap.Uint("job_id", jobID),
		zap.Uint("content_id", job.ContentID),
		zap.Int("version", job.VersionNo))
}

// settleFailure applies the retry policy: back to pending with the next
// retry time from the backoff table, or terminally failed once the attempt
// count exceeds the ceiling. Attempts 1..maxAttempts each get a retry; the
// attempt after the last retry is terminal.
func (w *PublishJobWorker) settleFailure(jobID uint, errText string) {
	var job models.PublishJob
	if err := w.db.First(&job, jobID).Error; err != nil {
		w.logger.Error("Failed to reload job for retry bookkeeping",
			zap.Uint("job_id", jobID), zap.Error(err))
		return
	}

	truncated := util.Truncate(errText, maxStoredErrorLen)
	now := w.now().UTC()

	if job.AttemptCount > w.maxAttempts {
		if err := w.db.Model(&models.PublishJob{}).
			Where("id = ?", jobID).
			Updates(map[string]interface{}{
				"status":        models.JobStatusFailed,
				"completed_at":  now,
				"next_retry_at": nil,
				"last_error":    truncated,
			}).Error; err != nil {
			w.logger.Error("Failed to mark job failed", zap.Uint("job_id", jobID), zap.Error(err))
		}
		w.logger.Error("Publish job failed terminally",
			zap.Uint("job_id", jobID),
			zap.Int("attempts", job.AttemptCount),
			zap.String("error", truncated))
		return
	}

	nextRetry := now.Add(backoffForAttempt(job.AttemptCount))
	if err := w.db.Model(&models.PublishJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":        models.JobStatusPending,
			"next_retry_at": nextRetry,
			"last_error":    truncated,
		}).Error; err != nil {
		w.logger.Error("Failed to schedule job retry", zap.Uint("job_id", jobID), zap.Error(err))
		return
	}

	w.logger.Warn("Publish job will retry",
		zap.Uint("job_id", jobID),
		zap.Int("attempt", job.AttemptCount),
		zap.Time("next_retry_at", nextRetry),
		zap.String("error", truncated))
}
