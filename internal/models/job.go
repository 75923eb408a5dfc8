package models

import (
	"time"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsActive reports whether a job still occupies the (content, version) slot.
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// PublishJob is one publish intent for one content version. At most one
// active (pending or running) job may exist per (content_id, version_no),
// enforced by a partial unique index; the row is never deleted, only driven
// to a terminal status.
type PublishJob struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ContentID     uint      `gorm:"not null;index:idx_publish_jobs_content_version" json:"content_id"`
	VersionNo     int       `gorm:"not null;index:idx_publish_jobs_content_version" json:"version_no"`
	Status        JobStatus `gorm:"size:20;default:'pending';index" json:"status"`
	ScheduledAt   time.Time `gorm:"not null;index" json:"scheduled_at"`
	AttemptCount  int       `gorm:"not null;default:0" json:"attempt_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at"`
	NextRetryAt   *time.Time `json:"next_retry_at"`
	CompletedAt   *time.Time `gorm:"index" json:"completed_at"`
	LastError     string    `gorm:"type:text" json:"last_error"`
	CreatedBy     *uint     `json:"created_by"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Content ContentItem `gorm:"foreignKey:ContentID" json:"content"`
}
