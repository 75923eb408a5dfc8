package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/newsgate/newsgate/internal/models"
)

const maxEmergencyPriority = 100

// EmergencyDetection is the scoring outcome for one content item.
type EmergencyDetection struct {
	IsEmergency     bool     `json:"is_emergency"`
	Priority        int      `json:"priority"`
	MatchedKeywords []string `json:"matched_keywords"`
	Reason          string   `json:"reason"`
	IsBreakingNews  bool     `json:"is_breaking_news"`
	CategoryMatch   bool     `json:"category_match"`
	TrustedSource   bool     `json:"trusted_source"`
}

// EmergencyClassifier scores content items against the policy's emergency
// rules and maintains the emergency queue.
type EmergencyClassifier struct {
	db          *gorm.DB
	policyStore *PolicyStore
	logger      *zap.Logger
}

func NewEmergencyClassifier(db *gorm.DB, policyStore *PolicyStore, logger *zap.Logger) *EmergencyClassifier {
	return &EmergencyClassifier{
		db:          db,
		policyStore: policyStore,
		logger:      logger,
	}
}

// DetectEmergency scores additively: breaking flag +50, emergency category
// +30, +10 per matched keyword, trusted source +20, capped at 100. The item
// is an emergency when the score reaches 30, the breaking flag is set, or
// the keyword match count reaches the policy threshold.
func (c *EmergencyClassifier) DetectEmergency(item *models.ContentItem) EmergencyDetection {
	rules := c.policyStore.GetEmergencyRules()

	detection := EmergencyDetection{
		IsBreakingNews: item.IsBreaking,
	}
	var reasons []string

	if item.IsBreaking {
		detection.Priority += 50
		reasons = append(reasons, "marked breaking")
	}

	if containsFold(rules.Categories, item.Category) {
		detection.Priority += 30
		detection.CategoryMatch = true
		reasons = append(reasons, fmt.Sprintf("emergency category %q", item.Category))
	}

	haystack := strings.ToLower(item.Title + " " + item.Summary)
	for _, keyword := range rules.Keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(keyword)) {
			detection.Priority += 10
			detection.MatchedKeywords = append(detection.MatchedKeywords, keyword)
		}
	}
	if len(detection.MatchedKeywords) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d keyword matches", len(detection.MatchedKeywords)))
	}

	if containsFold(rules.TrustedSources, item.SourceName) {
		detection.Priority += 20
		detection.TrustedSource = true
		reasons = append(reasons, fmt.Sprintf("trusted source %q", item.SourceName))
	}

	if detection.Priority > maxEmergencyPriority {
		detection.Priority = maxEmergencyPriority
	}

	keywordThresholdMet := rules.MinKeywordScore > 0 && len(detection.MatchedKeywords) >= rules.MinKeywordScore
	detection.IsEmergency = detection.Priority >= 30 || item.IsBreaking || keywordThresholdMet

	if !detection.IsEmergency {
		return EmergencyDetection{IsBreakingNews: item.IsBreaking}
	}

	detection.Reason = strings.Join(reasons, "; ")
	return detection
}

// EnqueueEmergency inserts a pending queue item, or raises the priority of
// the existing pending one. Priority never goes down; the update runs in a
// transaction to guard against a concurrent duplicate detection.
func (c *EmergencyClassifier) EnqueueEmergency(contentID uint, detection EmergencyDetection) (*models.EmergencyQueueItem, error) {
	if !detection.IsEmergency {
		return nil, fmt.Errorf("content %d was not classified as an emergency", contentID)
	}

	var item models.EmergencyQueueItem
	enqueueTx := func(tx *gorm.DB) error {
		err := tx.Where("content_id = ? AND status = ?", contentID, models.EmergencyStatusPending).
			First(&item).Error
		if err == nil {
			if detection.Priority > item.Priority {
				item.Priority = detection.Priority
			}
			item.MatchedKeywords = detection.MatchedKeywords
			item.Reason = detection.Reason
			return tx.Save(&item).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		item = models.EmergencyQueueItem{
			ContentID:       contentID,
			Priority:        detection.Priority,
			Status:          models.EmergencyStatusPending,
			MatchedKeywords: detection.MatchedKeywords,
			Reason:          detection.Reason,
			DetectedAt:      time.Now().UTC(),
		}
		return tx.Create(&item).Error
	}

	err := c.db.Transaction(enqueueTx)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent detection created the pending row first; rerun so
		// the existence check finds it and only raises the priority.
		err = c.db.Transaction(enqueueTx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue emergency item: %w", err)
	}

	c.logger.Info("Emergency item enqueued",
		zap.Uint("content_id", contentID),
		zap.Int("priority", item.Priority),
		zap.String("reason", item.Reason))

	return &item, nil
}

// ListQueue returns emergency queue items, optionally filtered by status,
// highest priority first.
func (c *EmergencyClassifier) ListQueue(status models.EmergencyStatus) ([]models.EmergencyQueueItem, error) {
	query := c.db.Order("priority DESC, detected_at ASC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var items []models.EmergencyQueueItem
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// CancelQueueItem moves a pending item to cancelled.
func (c *EmergencyClassifier) CancelQueueItem(id uint) error {
	now := time.Now().UTC()
	result := c.db.Model(&models.EmergencyQueueItem{}).
		Where("id = ? AND status = ?", id, models.EmergencyStatusPending).
		Updates(map[string]interface{}{
			"status":       models.EmergencyStatusCancelled,
			"cancelled_at": &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("emergency item %d is not pending", id)
	}
	return nil
}

// MarkPublished moves a pending or publishing item to its terminal
// published state.
func (c *EmergencyClassifier) MarkPublished(contentID uint) error {
	now := time.Now().UTC()
	return c.db.Model(&models.EmergencyQueueItem{}).
		Where("content_id = ? AND status IN ?", contentID,
			[]models.EmergencyStatus{models.EmergencyStatusPending, models.EmergencyStatusPublishing}).
		Updates(map[string]interface{}{
			"status":       models.EmergencyStatusPublished,
			"published_at": &now,
		}).Error
}

func containsFold(list []string, value string) bool {
	if value == "" {
		return false
	}
	for _, v := range list {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}
