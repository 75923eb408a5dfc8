package models

import (
	"time"
)

// DailyPublishStats 每日发布统计快照，由维护任务刷新
type DailyPublishStats struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Date               time.Time `gorm:"uniqueIndex;not null" json:"date"`
	TotalJobs          int       `gorm:"default:0" json:"total_jobs"`
	SucceededJobs      int       `gorm:"default:0" json:"succeeded_jobs"`
	FailedJobs         int       `gorm:"default:0" json:"failed_jobs"`
	PendingJobs        int       `gorm:"default:0" json:"pending_jobs"`
	CancelledJobs      int       `gorm:"default:0" json:"cancelled_jobs"`
	EmergencyPublished int       `gorm:"default:0" json:"emergency_published"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ErrorLog 错误日志表
type ErrorLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Level     string    `gorm:"size:20;not null;index" json:"level"`
	Source    string    `gorm:"size:100;not null;index" json:"source"`
	Channel   string    `gorm:"size:100;index" json:"channel"`
	ContentID *uint     `gorm:"index" json:"content_id"`
	JobID     *uint     `gorm:"index" json:"job_id"`
	Title     string    `gorm:"size:500;not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Context   string    `gorm:"type:text" json:"context"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
