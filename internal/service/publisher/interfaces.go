package publisher

import (
	"context"
	"time"

	"github.com/newsgate/newsgate/internal/models"
)

// PublishResult is the structured outcome of one channel attempt.
//
// Channels must not return an error for expected business failures; those are
// reported through Success=false. Skipped marks "not applicable" conditions
// (e.g. no image available) which the orchestrator treats as non-blocking.
// Retryable/RetryAfter are informational: the worker's backoff is attempt
// based and does not consult them.
type PublishResult struct {
	Success          bool
	Skipped          bool
	SkipReason       string
	RequestSnapshot  string
	ResponseSnapshot string
	Error            string
	ExternalID       string
	Retryable        bool
	RetryAfter       *time.Duration
}

// ChannelPublisher publishes one content version to one channel.
//
// ChannelName is the stable identifier used as the idempotency ledger key.
// Implementations own their network timeouts and return a failed result
// rather than hang; only programming errors surface as a Go error.
type ChannelPublisher interface {
	ChannelName() string
	Publish(ctx context.Context, item *models.ContentItem, draft *models.ContentDraft) (*PublishResult, error)
}

// Failure builds a failed result with the given error text.
func Failure(errText string, retryable bool) *PublishResult {
	return &PublishResult{Success: false, Error: errText, Retryable: retryable}
}

// Skip builds a skipped, non-blocking result.
func Skip(reason string) *PublishResult {
	return &PublishResult{Skipped: true, SkipReason: reason}
}
