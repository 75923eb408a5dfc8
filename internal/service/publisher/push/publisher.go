package push

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

// PushPublisher sends a mobile push notification through the push gateway.
type PushPublisher struct {
	logger     *zap.Logger
	client     *http.Client
	limiter    *rate.Limiter
	gatewayURL string
	apiKey     string
}

type pushRequest struct {
	RequestID string `json:"request_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	ContentID uint   `json:"content_id"`
	Deeplink  string `json:"deeplink"`
}

type pushResponse struct {
	NotificationID string `json:"notification_id"`
	Error          string `json:"error"`
}

func NewPushPublisher(cfg *config.PushChannelConfig, logger *zap.Logger) publisher.ChannelPublisher {
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 1
	}
	return &PushPublisher{
		logger: logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:    rate.NewLimiter(rate.Limit(limit), 1),
		gatewayURL: cfg.GatewayURL,
		apiKey:     cfg.APIKey,
	}
}

func (p *PushPublisher) ChannelName() string {
	return models.ChannelPush
}

func (p *PushPublisher) Publish(ctx context.Context, item *models.ContentItem, draft *models.ContentDraft) (*publisher.PublishResult, error) {
	text := draft.PushText
	if text == "" {
		text = item.Summary
	}
	if text == "" && item.Title == "" {
		return publisher.Skip("NoPushText"), nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return publisher.Failure(fmt.Sprintf("rate limiter: %v", err), true), nil
	}

	reqBody := pushRequest{
		RequestID: uuid.NewString(),
		Title:     item.Title,
		Body:      text,
		ContentID: item.ID,
		Deeplink:  fmt.Sprintf("newsgate://content/%d", item.ID),
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.gatewayURL+"/v1/notifications", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		result := publisher.Failure(fmt.Sprintf("push gateway request failed: %v", err), true)
		result.RequestSnapshot = string(payload)
		return result, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var parsed pushResponse
	_ = json.Unmarshal(respBody, &parsed)

	result := &publisher.PublishResult{
		RequestSnapshot:  string(payload),
		ResponseSnapshot: string(respBody),
		ExternalID:       parsed.NotificationID,
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result.Success = true
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		result.Error = fmt.Sprintf("push gateway returned %d: %s", resp.StatusCode, parsed.Error)
		result.Retryable = true
		if after := parseRetryAfter(resp); after > 0 {
			result.RetryAfter = &after
		}
	default:
		result.Error = fmt.Sprintf("push gateway returned %d: %s", resp.StatusCode, parsed.Error)
	}

	p.logger.Info("Push publish attempted",
		zap.Uint("content_id", item.ID),
		zap.Int("status_code", resp.StatusCode),
		zap.Bool("success", result.Success))

	return result, nil
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			return d
		}
	}
	return 0
}
