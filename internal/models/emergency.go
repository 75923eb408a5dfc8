package models

import (
	"time"
)

type EmergencyStatus string

const (
	EmergencyStatusPending    EmergencyStatus = "pending"
	EmergencyStatusPublishing EmergencyStatus = "publishing"
	EmergencyStatusPublished  EmergencyStatus = "published"
	EmergencyStatusCancelled  EmergencyStatus = "cancelled"
)

// EmergencyQueueItem flags a content item as time-critical. At most one
// pending item exists per content id, enforced by a partial unique index;
// re-detection only raises priority.
type EmergencyQueueItem struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	ContentID       uint            `gorm:"not null;index" json:"content_id"`
	Priority        int             `gorm:"not null;default:0" json:"priority"`
	Status          EmergencyStatus `gorm:"size:20;default:'pending';index" json:"status"`
	MatchedKeywords []string        `gorm:"serializer:json;type:text" json:"matched_keywords"`
	Reason          string          `gorm:"size:500" json:"reason"`
	TargetPlatforms []string        `gorm:"serializer:json;type:text" json:"target_platforms"`
	DetectedAt      time.Time       `gorm:"not null" json:"detected_at"`
	PublishedAt     *time.Time      `json:"published_at"`
	CancelledAt     *time.Time      `json:"cancelled_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Content ContentItem `gorm:"foreignKey:ContentID" json:"content"`
}
