package models

import (
	"time"
)

type PublishLogStatus string

const (
	PublishLogSuccess PublishLogStatus = "success"
	PublishLogFailed  PublishLogStatus = "failed"
	PublishLogSkipped PublishLogStatus = "skipped"
)

// Skip reasons recorded on skipped publish logs.
const (
	SkipReasonChannelDisabled  = "ChannelDisabled"
	SkipReasonAlreadyPublished = "AlreadyPublished"
)

// ChannelPublishLog is the append-only audit record of one channel attempt
// for one (content, version, channel) triple. A success row is the
// idempotency ledger: it proves that channel never needs to run again for
// that version. Rows are created once per attempt and never mutated.
type ChannelPublishLog struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	ContentID        uint             `gorm:"not null;index:idx_publish_logs_ledger" json:"content_id"`
	VersionNo        int              `gorm:"not null;index:idx_publish_logs_ledger" json:"version_no"`
	Channel          string           `gorm:"size:50;not null;index:idx_publish_logs_ledger" json:"channel"`
	Status           PublishLogStatus `gorm:"size:20;not null" json:"status"`
	SkipReason       string           `gorm:"size:100" json:"skip_reason"`
	RequestSnapshot  string           `gorm:"type:text" json:"request_snapshot"`
	ResponseSnapshot string           `gorm:"type:text" json:"response_snapshot"`
	Error            string           `gorm:"type:text" json:"error"`
	ExternalID       string           `gorm:"size:255" json:"external_id"`
	CreatedAt        time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
}
