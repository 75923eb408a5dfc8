package models

import (
	"time"

	"gorm.io/gorm"
)

type ContentStatus string

const (
	ContentStatusDraft          ContentStatus = "draft"
	ContentStatusInReview       ContentStatus = "in_review"
	ContentStatusScheduled      ContentStatus = "scheduled"
	ContentStatusReadyToPublish ContentStatus = "ready_to_publish"
	ContentStatusAutoReady      ContentStatus = "auto_ready"
	ContentStatusPublished      ContentStatus = "published"
	ContentStatusRejected       ContentStatus = "rejected"
	ContentStatusRetracted      ContentStatus = "retracted"
)

// ContentItem is the editorial record the publishing core operates on. The
// editorial workflow owns its lifecycle up to the point where a publish job is
// enqueued; from then on the core only reads it and flips it to published.
type ContentItem struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Title         string         `gorm:"not null;size:500" json:"title"`
	Summary       string         `gorm:"type:text" json:"summary"`
	Body          string         `gorm:"type:text" json:"body"`
	Category      string         `gorm:"size:100;index" json:"category"`
	ImageURL      string         `gorm:"size:1000" json:"image_url"`
	SourceName    string         `gorm:"size:200;index" json:"source_name"`
	IsBreaking    bool           `gorm:"default:false" json:"is_breaking"`
	Status        ContentStatus  `gorm:"size:50;default:'draft';index" json:"status"`
	VersionNo     int            `gorm:"not null;default:1" json:"version_no"`
	ScheduledAt   *time.Time     `json:"scheduled_at"`
	PublishedAt   *time.Time     `json:"published_at"`
	PublishedBy   *uint          `json:"published_by"`
	PublishOrigin string         `gorm:"size:50" json:"publish_origin"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// ContentDraft carries the per-channel toggles and channel-specific texts for
// one content item. One draft per item; versioning lives on the item.
type ContentDraft struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ContentID        uint      `gorm:"not null;uniqueIndex" json:"content_id"`
	WebEnabled       bool      `gorm:"default:false" json:"web_enabled"`
	PushEnabled      bool      `gorm:"default:false" json:"push_enabled"`
	TwitterEnabled   bool      `gorm:"default:false" json:"twitter_enabled"`
	InstagramEnabled bool      `gorm:"default:false" json:"instagram_enabled"`
	WebText          string    `gorm:"type:text" json:"web_text"`
	PushText         string    `gorm:"type:text" json:"push_text"`
	TwitterText      string    `gorm:"type:text" json:"twitter_text"`
	InstagramText    string    `gorm:"type:text" json:"instagram_text"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Channel name constants shared by drafts, publish logs and publishers.
const (
	ChannelWeb       = "web"
	ChannelPush      = "push"
	ChannelTwitter   = "twitter"
	ChannelInstagram = "instagram"
)

// ChannelEnabled reports whether the given channel is toggled on in the draft.
// Unknown channels are treated as disabled.
func (d *ContentDraft) ChannelEnabled(channel string) bool {
	switch channel {
	case ChannelWeb:
		return d.WebEnabled
	case ChannelPush:
		return d.PushEnabled
	case ChannelTwitter:
		return d.TwitterEnabled
	case ChannelInstagram:
		return d.InstagramEnabled
	default:
		return false
	}
}

// ChannelText returns the channel-specific text, falling back to the empty
// string for unknown channels. Publishers fall back to the item title when
// the draft text is empty.
func (d *ContentDraft) ChannelText(channel string) string {
	switch channel {
	case ChannelWeb:
		return d.WebText
	case ChannelPush:
		return d.PushText
	case ChannelTwitter:
		return d.TwitterText
	case ChannelInstagram:
		return d.InstagramText
	default:
		return ""
	}
}
