package web

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/newsgate/newsgate/internal/config"
	"github.com/newsgate/newsgate/internal/models"
	"github.com/newsgate/newsgate/internal/service/publisher"
	"github.com/newsgate/newsgate/pkg/util"
)

// WebPublisher exposes a content item on the public site. The site renders
// published items straight from the database, so "publishing" here means
// computing the canonical URL; there is no external call that can fail
// transiently.
type WebPublisher struct {
	logger  *zap.Logger
	baseURL string
}

func NewWebPublisher(cfg *config.WebChannelConfig, logger *zap.Logger) publisher.ChannelPublisher {
	return &WebPublisher{
		logger:  logger,
		baseURL: cfg.BaseURL,
	}
}

func (p *WebPublisher) ChannelName() string {
	return models.ChannelWeb
}

func (p *WebPublisher) Publish(ctx context.Context, item *models.ContentItem, draft *models.ContentDraft) (*publisher.PublishResult, error) {
	url := fmt.Sprintf("%s/news/%d-%s", p.baseURL, item.ID, util.Slug(item.Title))

	p.logger.Info("Web publish completed",
		zap.Uint("content_id", item.ID),
		zap.Int("version", item.VersionNo),
		zap.String("url", url))

	return &publisher.PublishResult{
		Success:          true,
		RequestSnapshot:  fmt.Sprintf(`{"content_id":%d,"version":%d}`, item.ID, item.VersionNo),
		ResponseSnapshot: fmt.Sprintf(`{"url":%q}`, url),
		ExternalID:       url,
	}, nil
}
