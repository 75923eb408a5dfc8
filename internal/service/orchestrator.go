package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/newsgate/newsgate/internal/models"
	"github.com/newsgate/newsgate/internal/service/publisher"
	"github.com/newsgate/newsgate/pkg/util"
)

// ErrNoChannelsEnabled distinguishes "nothing to publish to" from a channel
// failure.
var ErrNoChannelsEnabled = errors.New("no channels enabled for content")

// ChannelOutcome is the per-channel slice of an orchestrator result.
type ChannelOutcome struct {
	Channel    string                  `json:"channel"`
	Status     models.PublishLogStatus `json:"status"`
	SkipReason string                  `json:"skip_reason,omitempty"`
	Error      string                  `json:"error,omitempty"`
	ExternalID string                  `json:"external_id,omitempty"`
}

type OrchestratorResult struct {
	AllSucceeded bool             `json:"all_succeeded"`
	VersionNo    int              `json:"version_no"`
	Error        string           `json:"error,omitempty"`
	PerChannel   []ChannelOutcome `json:"per_channel"`
}

// MediaGenerator is the optional post-publish hook (e.g. AI-derived social
// images). Its failure never fails the publish.
type MediaGenerator interface {
	GenerateForContent(ctx context.Context, item *models.ContentItem) error
}

// PublisherOrchestrator fans one content version out to every registered
// channel, enforcing per-(content, version, channel) idempotency through the
// publish log ledger. Publishers run in registration order.
type PublisherOrchestrator struct {
	db         *gorm.DB
	logger     *zap.Logger
	monitoring *MonitoringService
	publishers []publisher.ChannelPublisher
	mediaHook  MediaGenerator
}

func NewPublisherOrchestrator(db *gorm.DB, logger *zap.Logger, monitoring *MonitoringService) *PublisherOrchestrator {
	return &PublisherOrchestrator{
		db:         db,
		logger:     logger,
		monitoring: monitoring,
	}
}

// RegisterPublisher appends a channel publisher. Registration order is the
// fan-out order.
func (o *PublisherOrchestrator) RegisterPublisher(p publisher.ChannelPublisher) error {
	for _, existing := range o.publishers {
		if existing.ChannelName() == p.ChannelName() {
			return fmt.Errorf("publisher for channel %s already registered", p.ChannelName())
		}
	}
	o.publishers = append(o.publishers, p)
	o.logger.Info("Channel publisher registered", zap.String("channel", p.ChannelName()))
	return nil
}

// SetMediaHook wires the optional secondary action.
func (o *PublisherOrchestrator) SetMediaHook(hook MediaGenerator) {
	o.mediaHook = hook
}

// Publishers returns the registered channel names in fan-out order.
func (o *PublisherOrchestrator) Publishers() []string {
	var names []string
	for _, p := range o.publishers {
		names = append(names, p.ChannelName())
	}
	return names
}

// Publish fans out one content version. Retries re-enter here with the same
// arguments: channels that already have a success row in the ledger are
// skipped, so only previously failed channels are re-attempted.
func (o *PublisherOrchestrator) Publish(ctx context.Context, contentID uint, versionNo int, publishedBy *uint) (*OrchestratorResult, error) {
	var item models.ContentItem
	if err := o.db.First(&item, contentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrContentNotFound, contentID)
		}
		return nil, fmt.Errorf("failed to load content item: %w", err)
	}

	draft, err := o.loadOrSynthesizeDraft(&item)
	if err != nil {
		return nil, err
	}

	result := &OrchestratorResult{VersionNo: versionNo}

	enabledCount := 0
	for _, p := range o.publishers {
		if draft.ChannelEnabled(p.ChannelName()) {
			enabledCount++
		}
	}
	if enabledCount == 0 {
		result.Error = ErrNoChannelsEnabled.Error()
		return result, nil
	}

	failedCount := 0
	for _, p := range o.publishers {
		outcome := o.publishChannel(ctx, p, &item, draft, versionNo)
		result.PerChannel = append(result.PerChannel, outcome)
		if outcome.Status == models.PublishLogFailed {
			failedCount++
		}
	}

	if failedCount > 0 {
		result.Error = fmt.Sprintf("%d of %d enabled channels failed", failedCount, enabledCount)
		return result, nil
	}

	result.AllSucceeded = true
	if err := o.markPublished(&item, publishedBy); err != nil {
		return nil, fmt.Errorf("failed to mark content published: %w", err)
	}

	if o.mediaHook != nil {
		if err := o.mediaHook.GenerateForContent(ctx, &item); err != nil {
			// Secondary action only; the publish already happened.
			o.logger.Warn("Post-publish media generation failed",
				zap.Uint("content_id", item.ID),
				zap.Error(err))
		}
	}

	return result, nil
}

// publishChannel handles one channel: disabled check, ledger check, call,
// and the audit log row. The ledger lookup runs immediately before the
// external call and is never cached.
func (o *PublisherOrchestrator) publishChannel(ctx context.Context, p publisher.ChannelPublisher, item *models.ContentItem, draft *models.ContentDraft, versionNo int) ChannelOutcome {
	channel := p.ChannelName()

	if !draft.ChannelEnabled(channel) {
		o.saveLog(&models.ChannelPublishLog{
			ContentID:  item.ID,
			VersionNo:  versionNo,
			Channel:    channel,
			Status:     models.PublishLogSkipped,
			SkipReason: models.SkipReasonChannelDisabled,
		})
		return ChannelOutcome{Channel: channel, Status: models.PublishLogSkipped, SkipReason: models.SkipReasonChannelDisabled}
	}

	var count int64
	if err := o.db.Model(&models.ChannelPublishLog{}).
		Where("content_id = ? AND version_no = ? AND channel = ? AND status = ?",
			item.ID, versionNo, channel, models.PublishLogSuccess).
		Count(&count).Error; err != nil {
		o.logger.Error("Idempotency ledger check failed",
			zap.String("channel", channel),
			zap.Error(err))
		return ChannelOutcome{Channel: channel, Status: models.PublishLogFailed, Error: err.Error()}
	}
	if count > 0 {
		o.saveLog(&models.ChannelPublishLog{
			ContentID:  item.ID,
			VersionNo:  versionNo,
			Channel:    channel,
			Status:     models.PublishLogSkipped,
			SkipReason: models.SkipReasonAlreadyPublished,
		})
		return ChannelOutcome{Channel: channel, Status: models.PublishLogSkipped, SkipReason: models.SkipReasonAlreadyPublished}
	}

	res, err := p.Publish(ctx, item, draft)
	if err != nil {
		// Publisher contract violation or programming error; still one attempt.
		res = publisher.Failure(err.Error(), false)
	}

	log := &models.ChannelPublishLog{
		ContentID:        item.ID,
		VersionNo:        versionNo,
		Channel:          channel,
		RequestSnapshot:  res.RequestSnapshot,
		ResponseSnapshot: res.ResponseSnapshot,
		Error:            util.Truncate(res.Error, maxStoredErrorLen),
		ExternalID:       res.ExternalID,
	}

	outcome := ChannelOutcome{Channel: channel, ExternalID: res.ExternalID}
	switch {
	case res.Skipped:
		log.Status = models.PublishLogSkipped
		log.SkipReason = res.SkipReason
		outcome.Status = models.PublishLogSkipped
		outcome.SkipReason = res.SkipReason
	case res.Success:
		log.Status = models.PublishLogSuccess
		outcome.Status = models.PublishLogSuccess
	default:
		log.Status = models.PublishLogFailed
		outcome.Status = models.PublishLogFailed
		outcome.Error = res.Error
		o.monitoring.RecordError("ERROR", "orchestrator",
			fmt.Sprintf("Publish to %s failed", channel), res.Error,
			WithChannel(channel), WithContent(item.ID))
	}

	o.saveLog(log)
	return outcome
}

// loadOrSynthesizeDraft fetches the item's draft. Items without one get a
// conservative default enabling only the web channel: never silently turn on
// channels whose credentials might be unset.
func (o *PublisherOrchestrator) loadOrSynthesizeDraft(item *models.ContentItem) (*models.ContentDraft, error) {
	var draft models.ContentDraft
	err := o.db.Where("content_id = ?", item.ID).First(&draft).Error
	if err == nil {
		return &draft, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load content draft: %w", err)
	}

	draft = models.ContentDraft{
		ContentID:  item.ID,
		WebEnabled: true,
		WebText:    item.Title,
	}
	if err := o.db.Create(&draft).Error; err != nil {
		return nil, fmt.Errorf("failed to persist default draft: %w", err)
	}

	o.logger.Info("Synthesized default draft",
		zap.Uint("content_id", item.ID))
	return &draft, nil
}

func (o *PublisherOrchestrator) markPublished(item *models.ContentItem, publishedBy *uint) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       models.ContentStatusPublished,
		"published_at": &now,
	}
	if publishedBy != nil {
		updates["published_by"] = publishedBy
	}
	if err := o.db.Model(item).Updates(updates).Error; err != nil {
		return err
	}

	// Close out any emergency queue entry; best effort.
	if err := o.db.Model(&models.EmergencyQueueItem{}).
		Where("content_id = ? AND status IN ?", item.ID,
			[]models.EmergencyStatus{models.EmergencyStatusPending, models.EmergencyStatusPublishing}).
		Updates(map[string]interface{}{
			"status":       models.EmergencyStatusPublished,
			"published_at": &now,
		}).Error; err != nil {
		o.logger.Warn("Failed to close emergency queue entry", zap.Error(err))
	}
	return nil
}

// saveLog writes one audit row. Audit failures are logged and swallowed:
// they must never abort the publish path.
func (o *PublisherOrchestrator) saveLog(log *models.ChannelPublishLog) {
	if err := o.db.Create(log).Error; err != nil {
		o.logger.Error("Failed to write channel publish log",
			zap.String("channel", log.Channel),
			zap.Uint("content_id", log.ContentID),
			zap.Error(err))
	}
}
