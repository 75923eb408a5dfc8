package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/newsgate/newsgate/internal/config"
	"github.com/newsgate/newsgate/internal/models"
)

// HTTPMediaGenerator asks the media service to derive social imagery for a
// freshly published item. Strictly best effort; callers log and move on.
type HTTPMediaGenerator struct {
	logger      *zap.Logger
	client      *http.Client
	endpointURL string
}

func NewHTTPMediaGenerator(cfg *config.MediaHookConfig, logger *zap.Logger) *HTTPMediaGenerator {
	return &HTTPMediaGenerator{
		logger:      logger,
		endpointURL: cfg.EndpointURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (g *HTTPMediaGenerator) GenerateForContent(ctx context.Context, item *models.ContentItem) error {
	payload, err := json.Marshal(map[string]interface{}{
		"content_id": item.ID,
		"title":      item.Title,
		"summary":    item.Summary,
	})
	if err != nil {
		return fmt.Errorf("failed to encode media request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpointURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build media request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("media service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("media service returned %d", resp.StatusCode)
	}

	g.logger.Info("Media generation requested", zap.Uint("content_id", item.ID))
	return nil
}
