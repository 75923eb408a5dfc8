package service

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/newsgate/newsgate/internal/models"
)

type MonitoringService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewMonitoringService(db *gorm.DB, logger *zap.Logger) *MonitoringService {
	return &MonitoringService{
		db:     db,
		logger: logger,
	}
}

// RecordError 记录错误日志；写入失败只打日志，绝不向上传播
func (m *MonitoringService) RecordError(level, source, title, message string, options ...ErrorLogOption) {
	errorLog := &models.ErrorLog{
		Level:   level,
		Source:  source,
		Title:   title,
		Message: message,
	}

	for _, option := range options {
		option(errorLog)
	}

	if err := m.db.Create(errorLog).Error; err != nil {
		m.logger.Error("Failed to write error log",
			zap.String("source", source),
			zap.Error(err))
	}
}

// ErrorLogOption 错误日志选项
type ErrorLogOption func(*models.ErrorLog)

func WithChannel(channel string) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.Channel = channel
	}
}

func WithContent(contentID uint) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.ContentID = &contentID
	}
}

func WithJob(jobID uint) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.JobID = &jobID
	}
}

func WithContext(context map[string]interface{}) ErrorLogOption {
	return func(e *models.ErrorLog) {
		if contextBytes, err := json.Marshal(context); err == nil {
			e.Context = string(contextBytes)
		}
	}
}

// UpdateDailyStats 刷新当日发布统计快照
func (m *MonitoringService) UpdateDailyStats() error {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	tomorrow := today.Add(24 * time.Hour)

	count := func(status models.JobStatus) int64 {
		var n int64
		m.db.Model(&models.PublishJob{}).
			Where("status = ? AND updated_at >= ? AND updated_at < ?", status, today, tomorrow).
			Count(&n)
		return n
	}

	var total int64
	m.db.Model(&models.PublishJob{}).
		Where("created_at >= ? AND created_at < ?", today, tomorrow).
		Count(&total)

	var emergencyPublished int64
	m.db.Model(&models.EmergencyQueueItem{}).
		Where("status = ? AND published_at >= ? AND published_at < ?",
			models.EmergencyStatusPublished, today, tomorrow).
		Count(&emergencyPublished)

	stats := models.DailyPublishStats{
		Date:               today,
		TotalJobs:          int(total),
		SucceededJobs:      int(count(models.JobStatusSucceeded)),
		FailedJobs:         int(count(models.JobStatusFailed)),
		PendingJobs:        int(count(models.JobStatusPending)),
		CancelledJobs:      int(count(models.JobStatusCancelled)),
		EmergencyPublished: int(emergencyPublished),
	}

	var existing models.DailyPublishStats
	err := m.db.Where("date = ?", today).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return m.db.Create(&stats).Error
	}
	if err != nil {
		return err
	}

	stats.ID = existing.ID
	return m.db.Save(&stats).Error
}

// CleanupOldData 清理过期的统计与错误日志
func (m *MonitoringService) CleanupOldData(keepDays int) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -keepDays)

	if err := m.db.Where("date < ?", cutoff).
		Delete(&models.DailyPublishStats{}).Error; err != nil {
		return err
	}
	return m.db.Where("created_at < ?", cutoff).
		Delete(&models.ErrorLog{}).Error
}
