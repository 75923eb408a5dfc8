package twitter

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

const maxTweetLen = 280

// TwitterPublisher posts a content item to the social network API.
type TwitterPublisher struct {
	logger      *zap.Logger
	client      *http.Client
	limiter     *rate.Limiter
	apiBaseURL  string
	accessToken string
}

type tweetRequest struct {
	Text           string `json:"text"`
	IdempotencyKey string `json:"idempotency_key"`
}

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Detail string `json:"detail"`
}

func NewTwitterPublisher(cfg *config.TwitterConfig, logger *zap.Logger) publisher.ChannelPublisher {
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 0.5
	}
	return &TwitterPublisher{
		logger: logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:     rate.NewLimiter(rate.Limit(limit), 1),
		apiBaseURL:  cfg.APIBaseURL,
		accessToken: cfg.AccessToken,
	}
}

func (p *TwitterPublisher) ChannelName() string {
	return models.ChannelTwitter
}

func (p *TwitterPublisher) Publish(ctx context.Context, item *models.ContentItem, draft *models.ContentDraft) (*publisher.PublishResult, error) {
	text := draft.TwitterText
	if text == "" {
		text = item.Title
	}
	if text == "" {
		return publisher.Skip("NoText"), nil
	}
	if len([]rune(text)) > maxTweetLen {
		runes := []rune(text)
		text = string(runes[:maxTweetLen-1]) + "…"
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return publisher.Failure(fmt.Sprintf("rate limiter: %v", err), true), nil
	}

	reqBody := tweetRequest{
		Text:           text,
		IdempotencyKey: uuid.NewString(),
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tweet request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBaseURL+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build tweet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		result := publisher.Failure(fmt.Sprintf("twitter request failed: %v", err), true)
		result.RequestSnapshot = string(payload)
		return result, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var parsed tweetResponse
	_ = json.Unmarshal(respBody, &parsed)

	result := &publisher.PublishResult{
		RequestSnapshot:  string(payload),
		ResponseSnapshot: string(respBody),
		ExternalID:       parsed.Data.ID,
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result.Success = true
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		result.Error = fmt.Sprintf("twitter returned %d: %s", resp.StatusCode, parsed.Detail)
		result.Retryable = true
	default:
		// 4xx other than 429 is a permanent rejection (bad token, duplicate, policy)
		result.Error = fmt.Sprintf("twitter returned %d: %s", resp.StatusCode, parsed.Detail)
	}

	p.logger.Info("Twitter publish attempted",
		zap.Uint("content_id", item.ID),
		zap.Int("status_code", resp.StatusCode),
		zap.Bool("success", result.Success))

	return result, nil
}
