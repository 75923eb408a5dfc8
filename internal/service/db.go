package service

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/newsgate/newsgate/internal/config"
	"github.com/newsgate/newsgate/internal/models"
)

func NewDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		cfg.Host, cfg.Username, cfg.Password, cfg.Database, cfg.Port, cfg.SSLMode, cfg.TimeZone)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Migrate applies the schema. Shared with the in-memory test database.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.ContentItem{},
		&models.ContentDraft{},
		&models.PublishJob{},
		&models.ChannelPublishLog{},
		&models.EmergencyQueueItem{},
		&models.Setting{},
		&models.DailyPublishStats{},
		&models.ErrorLog{},
	); err != nil {
		return err
	}

	// Partial unique indexes backing the dedup invariants: concurrent
	// enqueues racing past the existence checks hit these instead of
	// inserting duplicates.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_publish_jobs_active
		ON publish_jobs (content_id, version_no)
		WHERE status IN ('pending','running')`).Error; err != nil {
		return err
	}
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_emergency_queue_pending
		ON emergency_queue_items (content_id)
		WHERE status = 'pending'`).Error
}
