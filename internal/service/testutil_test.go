package service

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/newsgate/newsgate/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newTestPolicyStore(t *testing.T, db *gorm.DB) *PolicyStore {
	t.Helper()
	return NewPolicyStore(db, zap.NewNop())
}

func createContent(t *testing.T, db *gorm.DB, status models.ContentStatus) *models.ContentItem {
	t.Helper()

	item := &models.ContentItem{
		Title:      "Council approves new tram line",
		Summary:    "The city council approved the downtown tram extension.",
		Category:   "local",
		SourceName: "city-desk",
		Status:     status,
		VersionNo:  1,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("failed to create content item: %v", err)
	}
	return item
}

func createDraft(t *testing.T, db *gorm.DB, contentID uint, channels ...string) *models.ContentDraft {
	t.Helper()

	draft := &models.ContentDraft{ContentID: contentID}
	for _, ch := range channels {
		switch ch {
		case models.ChannelWeb:
			draft.WebEnabled = true
		case models.ChannelPush:
			draft.PushEnabled = true
		case models.ChannelTwitter:
			draft.TwitterEnabled = true
		case models.ChannelInstagram:
			draft.InstagramEnabled = true
		}
	}
	if err := db.Create(draft).Error; err != nil {
		t.Fatalf("failed to create draft: %v", err)
	}
	return draft
}

func createCompletedJob(t *testing.T, db *gorm.DB, contentID uint, completedAt time.Time) *models.PublishJob {
	t.Helper()

	job := &models.PublishJob{
		ContentID:   contentID,
		VersionNo:   1,
		Status:      models.JobStatusSucceeded,
		ScheduledAt: completedAt.Add(-time.Minute),
		CompletedAt: &completedAt,
	}
	if err := db.Create(job).Error; err != nil {
		t.Fatalf("failed to create completed job: %v", err)
	}
	return job
}
