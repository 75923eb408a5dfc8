package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/newsgate/newsgate/internal/config"
	"github.com/newsgate/newsgate/internal/models"
)

func newTestPublisher(t *testing.T, baseURL string) *TwitterPublisher {
	t.Helper()

	p := NewTwitterPublisher(&config.TwitterConfig{
		APIBaseURL:  baseURL,
		AccessToken: "test-token",
		RateLimit:   1000,
	}, zap.NewNop())
	return p.(*TwitterPublisher)
}

func TestPublishPostsTweet(t *testing.T) {
	var gotBody tweetRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"tw-123"}}`))
	}))
	defer srv.Close()

	p := newTestPublisher(t, srv.URL)
	item := &models.ContentItem{Title: "Council approves new tram line"}
	draft := &models.ContentDraft{TwitterText: "Tram line approved. Details inside."}

	result, err := p.Publish(context.Background(), item, draft)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	if result.ExternalID != "tw-123" {
		t.Errorf("ExternalID = %q", result.ExternalID)
	}
	if gotBody.Text != draft.TwitterText {
		t.Errorf("posted text = %q", gotBody.Text)
	}
	if gotBody.IdempotencyKey == "" {
		t.Error("idempotency key missing")
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestPublishFallsBackToTitleAndTruncates(t *testing.T) {
	var gotBody tweetRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"data":{"id":"tw-1"}}`))
	}))
	defer srv.Close()

	p := newTestPublisher(t, srv.URL)
	item := &models.ContentItem{Title: strings.Repeat("a", 400)}

	result, err := p.Publish(context.Background(), item, &models.ContentDraft{})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	if got := len([]rune(gotBody.Text)); got != maxTweetLen {
		t.Errorf("tweet length = %d runes, want %d", got, maxTweetLen)
	}
	if !strings.HasSuffix(gotBody.Text, "…") {
		t.Error("truncated tweet should end with an ellipsis")
	}
}

func TestPublishSkipsWithoutText(t *testing.T) {
	p := newTestPublisher(t, "http://unused")

	result, err := p.Publish(context.Background(), &models.ContentItem{}, &models.ContentDraft{})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !result.Skipped || result.SkipReason != "NoText" {
		t.Errorf("result = %+v, want NoText skip", result)
	}
}

func TestPublishStatusMapping(t *testing.T) {
	cases := []struct {
		status    int
		success   bool
		retryable bool
	}{
		{http.StatusOK, true, false},
		{http.StatusTooManyRequests, false, true},
		{http.StatusBadGateway, false, true},
		{http.StatusForbidden, false, false},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"detail":"detail"}`))
		}))

		p := newTestPublisher(t, srv.URL)
		result, err := p.Publish(context.Background(), &models.ContentItem{Title: "t"}, &models.ContentDraft{})
		srv.Close()
		if err != nil {
			t.Fatalf("status %d: Publish: %v", tc.status, err)
		}
		if result.Success != tc.success {
			t.Errorf("status %d: Success = %v, want %v", tc.status, result.Success, tc.success)
		}
		if result.Retryable != tc.retryable {
			t.Errorf("status %d: Retryable = %v, want %v", tc.status, result.Retryable, tc.retryable)
		}
	}
}
