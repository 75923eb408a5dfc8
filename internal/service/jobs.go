package service

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/newsgate/newsgate/internal/models"
)

var (
	ErrContentNotFound   = errors.New("content item not found")
	ErrStatusNotEligible = errors.New("content status is not eligible for publishing")
)

// EnqueueRequest is the sole write path into the scheduling core from the
// editorial workflow.
type EnqueueRequest struct {
	ContentID   uint       `json:"content_id"`
	UserID      *uint      `json:"user_id"`
	VersionNo   *int       `json:"version_no"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Origin      string     `json:"origin"`
}

type EnqueueResult struct {
	Success       bool      `json:"success"`
	AlreadyQueued bool      `json:"already_queued"`
	JobID         uint      `json:"job_id"`
	VersionNo     int       `json:"version_no"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Message       string    `json:"message"`
}

// PublishJobService validates enqueue requests, resolves the effective
// version and schedule time, and prevents duplicate active jobs for the
// same content version.
type PublishJobService struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewPublishJobService(db *gorm.DB, logger *zap.Logger) *PublishJobService {
	return &PublishJobService{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Enqueue creates one publish intent. If an active (pending or running) job
// already exists for the same (content, version), no duplicate is created
// and AlreadyQueued is reported instead: approve plus auto-retry racing each
// other must not double-enqueue.
func (s *PublishJobService) Enqueue(req EnqueueRequest) (*EnqueueResult, error) {
	var item models.ContentItem
	if err := s.db.First(&item, req.ContentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrContentNotFound, req.ContentID)
		}
		return nil, fmt.Errorf("failed to load content item: %w", err)
	}

	scheduledAt, err := s.resolveScheduledAt(&item, req.ScheduledAt)
	if err != nil {
		return nil, err
	}

	versionNo := item.VersionNo
	if req.VersionNo != nil {
		versionNo = *req.VersionNo
	}

	var result EnqueueResult
	enqueueTx := func(tx *gorm.DB) error {
		var existing models.PublishJob
		err := tx.Where("content_id = ? AND version_no = ? AND status IN ?",
			item.ID, versionNo,
			[]models.JobStatus{models.JobStatusPending, models.JobStatusRunning}).
			First(&existing).Error
		if err == nil {
			result = EnqueueResult{
				Success:       true,
				AlreadyQueued: true,
				JobID:         existing.ID,
				VersionNo:     existing.VersionNo,
				ScheduledAt:   existing.ScheduledAt,
				Message:       "an active publish job already exists for this version",
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		job := models.PublishJob{
			ContentID:   item.ID,
			VersionNo:   versionNo,
			Status:      models.JobStatusPending,
			ScheduledAt: scheduledAt,
			CreatedBy:   req.UserID,
		}
		if err := tx.Create(&job).Error; err != nil {
			return err
		}

		if req.Origin != "" && item.PublishOrigin != req.Origin {
			if err := tx.Model(&item).Update("publish_origin", req.Origin).Error; err != nil {
				return err
			}
		}

		result = EnqueueResult{
			Success:     true,
			JobID:       job.ID,
			VersionNo:   versionNo,
			ScheduledAt: scheduledAt,
			Message:     "publish job enqueued",
		}
		return nil
	}

	err = s.db.Transaction(enqueueTx)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent enqueue won the insert race past the existence
		// check; the partial unique index rejected ours. Rerun to find
		// the winner and report AlreadyQueued.
		err = s.db.Transaction(enqueueTx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue publish job: %w", err)
	}

	if !result.AlreadyQueued {
		s.logger.Info("Publish job enqueued",
			zap.Uint("content_id", item.ID),
			zap.Int("version", versionNo),
			zap.Time("scheduled_at", scheduledAt))
	}

	return &result, nil
}

// resolveScheduledAt picks the effective schedule time: the explicit request
// time wins, then the item's own schedule when it is in scheduled state,
// then "now" for ready/published items. Anything else is rejected.
func (s *PublishJobService) resolveScheduledAt(item *models.ContentItem, explicit *time.Time) (time.Time, error) {
	if explicit != nil {
		return explicit.UTC(), nil
	}

	switch item.Status {
	case models.ContentStatusScheduled:
		if item.ScheduledAt != nil {
			return item.ScheduledAt.UTC(), nil
		}
		return s.now().UTC(), nil
	case models.ContentStatusReadyToPublish, models.ContentStatusAutoReady, models.ContentStatusPublished:
		return s.now().UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %s", ErrStatusNotEligible, item.Status)
	}
}

// Cancel moves a pending job to cancelled. Running jobs cannot be cancelled
// mid-flight; they finish and a retraction becomes a corrective action.
func (s *PublishJobService) Cancel(jobID uint) error {
	result := s.db.Model(&models.PublishJob{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusPending).
		Update("status", models.JobStatusCancelled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job %d is not pending", jobID)
	}
	return nil
}

// CancelForContent cancels every pending job of a content item, e.g. on
// retraction. Returns the number of cancelled jobs.
func (s *PublishJobService) CancelForContent(contentID uint) (int64, error) {
	result := s.db.Model(&models.PublishJob{}).
		Where("content_id = ? AND status = ?", contentID, models.JobStatusPending).
		Update("status", models.JobStatusCancelled)
	return result.RowsAffected, result.Error
}

// GetJob loads one job.
func (s *PublishJobService) GetJob(jobID uint) (*models.PublishJob, error) {
	var job models.PublishJob
	if err := s.db.First(&job, jobID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (s *PublishJobService) ListJobs(status models.JobStatus, limit int) ([]models.PublishJob, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := s.db.Order("created_at DESC").Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var jobs []models.PublishJob
	if err := query.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListLogs returns the channel publish logs of a content item, newest first.
func (s *PublishJobService) ListLogs(contentID uint) ([]models.ChannelPublishLog, error) {
	var logs []models.ChannelPublishLog
	err := s.db.Where("content_id = ?", contentID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}
