package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/newsgate/newsgate/internal/config"
	"github.com/newsgate/newsgate/internal/models"
	"github.com/newsgate/newsgate/internal/service/publisher"
)

// InstagramPublisher posts a content item's image to the image network.
// Items without an image are skipped; the channel is image-only.
type InstagramPublisher struct {
	logger      *zap.Logger
	client      *http.Client
	limiter     *rate.Limiter
	apiBaseURL  string
	accessToken string
}

type mediaRequest struct {
	ImageURL  string `json:"image_url"`
	Caption   string `json:"caption"`
	RequestID string `json:"request_id"`
}

type mediaResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func NewInstagramPublisher(cfg *config.InstagramConfig, logger *zap.Logger) publisher.ChannelPublisher {
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 0.2
	}
	return &InstagramPublisher{
		logger: logger,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter:     rate.NewLimiter(rate.Limit(limit), 1),
		apiBaseURL:  cfg.APIBaseURL,
		accessToken: cfg.AccessToken,
	}
}

func (p *InstagramPublisher) ChannelName() string {
	return models.ChannelInstagram
}

func (p *InstagramPublisher) Publish(ctx context.Context, item *models.ContentItem, draft *models.ContentDraft) (*publisher.PublishResult, error) {
	if item.ImageURL == "" {
		return publisher.Skip("NoImageAvailable"), nil
	}

	caption := draft.InstagramText
	if caption == "" {
		caption = item.Title
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return publisher.Failure(fmt.Sprintf("rate limiter: %v", err), true), nil
	}

	reqBody := mediaRequest{
		ImageURL:  item.ImageURL,
		Caption:   caption,
		RequestID: uuid.NewString(),
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal media request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBaseURL+"/v1/media", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build media request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		result := publisher.Failure(fmt.Sprintf("instagram request failed: %v", err), true)
		result.RequestSnapshot = string(payload)
		return result, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var parsed mediaResponse
	_ = json.Unmarshal(respBody, &parsed)

	result := &publisher.PublishResult{
		RequestSnapshot:  string(payload),
		ResponseSnapshot: string(respBody),
		ExternalID:       parsed.ID,
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result.Success = true
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		result.Error = fmt.Sprintf("instagram returned %d: %s", resp.StatusCode, parsed.Message)
		result.Retryable = true
	default:
		result.Error = fmt.Sprintf("instagram returned %d: %s", resp.StatusCode, parsed.Message)
	}

	p.logger.Info("Instagram publish attempted",
		zap.Uint("content_id", item.ID),
		zap.Int("status_code", resp.StatusCode),
		zap.Bool("success", result.Success))

	return result, nil
}
