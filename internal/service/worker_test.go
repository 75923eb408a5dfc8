package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/newsgate/newsgate/internal/config"
	"github.com/newsgate/newsgate/internal/models"
	"github.com/newsgate/newsgate/internal/service/publisher"
)

func newTestWorker(t *testing.T, db *gorm.DB, orch *PublisherOrchestrator, now time.Time) *PublishJobWorker {
	t.Helper()

	cfg := &config.WorkerConfig{
		PollInterval: "15s",
		BatchSize:    10,
		MaxAttempts:  5,
	}
	worker, err := NewPublishJobWorker(cfg, db, orch, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPublishJobWorker: %v", err)
	}
	worker.now = func() time.Time { return now }
	return worker
}

func createPendingJob(t *testing.T, db *gorm.DB, contentID uint, scheduledAt time.Time) *models.PublishJob {
	t.Helper()

	job := &models.PublishJob{
		ContentID:   contentID,
		VersionNo:   1,
		Status:      models.JobStatusPending,
		ScheduledAt: scheduledAt,
	}
	if err := db.Create(job).Error; err != nil {
		t.Fatalf("failed to create pending job: %v", err)
	}
	return job
}

func TestBackoffForAttempt(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Minute},
		{1, time.Minute},
		{2, 5 * time.Minute},
		{3, 15 * time.Minute},
		{4, time.Hour},
		{5, time.Hour},
		{9, time.Hour},
	}
	for _, tc := range cases {
		if got := backoffForAttempt(tc.attempt); got != tc.want {
			t.Errorf("backoffForAttempt(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestClaimDueJobsSelectsOnlyDue(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	due := createPendingJob(t, db, createContent(t, db, models.ContentStatusReadyToPublish).ID, now.Add(-time.Minute))
	future := createPendingJob(t, db, createContent(t, db, models.ContentStatusReadyToPublish).ID, now.Add(time.Hour))

	backingOff := createPendingJob(t, db, createContent(t, db, models.ContentStatusReadyToPublish).ID, now.Add(-time.Hour))
	retryAt := now.Add(10 * time.Minute)
	db.Model(backingOff).Update("next_retry_at", retryAt)

	cancelled := createPendingJob(t, db, createContent(t, db, models.ContentStatusReadyToPublish).ID, now.Add(-time.Minute))
	db.Model(cancelled).Update("status", models.JobStatusCancelled)

	worker := newTestWorker(t, db, newTestOrchestrator(t, db), now)
	claimed, err := worker.claimDueJobs()
	if err != nil {
		t.Fatalf("claimDueJobs: %v", err)
	}

	if len(claimed) != 1 || claimed[0].ID != due.ID {
		t.Fatalf("claimed %+v, want only job %d", claimed, due.ID)
	}

	var reloaded models.PublishJob
	db.First(&reloaded, due.ID)
	if reloaded.Status != models.JobStatusRunning {
		t.Errorf("claimed job status = %s, want running", reloaded.Status)
	}
	if reloaded.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1", reloaded.AttemptCount)
	}

	var reloadedFuture models.PublishJob
	db.First(&reloadedFuture, future.ID)
	if reloadedFuture.Status != models.JobStatusPending {
		t.Errorf("future job status = %s, want pending", reloadedFuture.Status)
	}
}

func TestClaimDueJobsIsExclusive(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		item := createContent(t, db, models.ContentStatusReadyToPublish)
		createPendingJob(t, db, item.ID, now.Add(-time.Minute))
	}

	a := newTestWorker(t, db, newTestOrchestrator(t, db), now)
	b := newTestWorker(t, db, newTestOrchestrator(t, db), now)

	claimedA, err := a.claimDueJobs()
	if err != nil {
		t.Fatalf("worker a claim: %v", err)
	}
	claimedB, err := b.claimDueJobs()
	if err != nil {
		t.Fatalf("worker b claim: %v", err)
	}

	if len(claimedA)+len(claimedB) != 3 {
		t.Errorf("claimed %d + %d jobs, want 3 total", len(claimedA), len(claimedB))
	}
	seen := make(map[uint]bool)
	for _, job := range append(claimedA, claimedB...) {
		if seen[job.ID] {
			t.Errorf("job %d claimed twice", job.ID)
		}
		seen[job.ID] = true
	}
}

func TestRunOnceSuccessPath(t *testing.T) {
	db := newTestDB(t)
	item := createContent(t, db, models.ContentStatusReadyToPublish)
	createDraft(t, db, item.ID, models.ChannelWeb)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	job := createPendingJob(t, db, item.ID, now.Add(-time.Minute))

	web := &fakePublisher{channel: models.ChannelWeb, results: []*publisher.PublishResult{successResult()}}
	worker := newTestWorker(t, db, newTestOrchestrator(t, db, web), now)

	worker.RunOnce(context.Background())

	var reloaded models.PublishJob
	if err := db.First(&reloaded, job.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != models.JobStatusSucceeded {
		t.Errorf("job status = %s, want succeeded", reloaded.Status)
	}
	if reloaded.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if reloaded.LastError != "" {
		t.Errorf("LastError = %q, want empty", reloaded.LastError)
	}

	var content models.ContentItem
	db.First(&content, item.ID)
	if content.Status != models.ContentStatusPublished {
		t.Errorf("content status = %s, want published", content.Status)
	}
}

func TestRunOnceFailureSchedulesRetry(t *testing.T) {
	db := newTestDB(t)
	item := createContent(t, db, models.ContentStatusReadyToPublish)
	createDraft(t, db, item.ID, models.ChannelWeb)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	job := createPendingJob(t, db, item.ID, now.Add(-time.Minute))

	web := &fakePublisher{channel: models.ChannelWeb, results: []*publisher.PublishResult{
		publisher.Failure("origin unreachable", true),
	}}
	worker := newTestWorker(t, db, newTestOrchestrator(t, db, web), now)

	worker.RunOnce(context.Background())

	var reloaded models.PublishJob
	if err := db.First(&reloaded, job.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != models.JobStatusPending {
		t.Errorf("job status = %s, want pending for retry", reloaded.Status)
	}
	if reloaded.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1", reloaded.AttemptCount)
	}
	if reloaded.NextRetryAt == nil {
		t.Fatal("NextRetryAt not set")
	}
	want := now.Add(time.Minute)
	if !reloaded.NextRetryAt.Equal(want) {
		t.Errorf("NextRetryAt = %v, want %v", reloaded.NextRetryAt, want)
	}
	if reloaded.LastError == "" {
		t.Error("LastError not recorded")
	}
}

func TestRunOnceFifthAttemptStillRetries(t *testing.T) {
	db := newTestDB(t)
	item := createContent(t, db, models.ContentStatusReadyToPublish)
	createDraft(t, db, item.ID, models.ChannelWeb)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Four attempts burned; the claim makes this attempt five, which still
	// gets the last backoff slot.
	job := createPendingJob(t, db, item.ID, now.Add(-time.Minute))
	db.Model(job).Update("attempt_count", 4)

	web := &fakePublisher{channel: models.ChannelWeb, results: []*publisher.PublishResult{
		publisher.Failure("still down", true),
	}}
	worker := newTestWorker(t, db, newTestOrchestrator(t, db, web), now)

	worker.RunOnce(context.Background())

	var reloaded models.PublishJob
	if err := db.First(&reloaded, job.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != models.JobStatusPending {
		t.Errorf("job status = %s, want pending after attempt 5", reloaded.Status)
	}
	if reloaded.AttemptCount != 5 {
		t.Errorf("AttemptCount = %d, want 5", reloaded.AttemptCount)
	}
	if reloaded.NextRetryAt == nil {
		t.Fatal("NextRetryAt not set")
	}
	want := now.Add(time.Hour)
	if !reloaded.NextRetryAt.Equal(want) {
		t.Errorf("NextRetryAt = %v, want %v", reloaded.NextRetryAt, want)
	}
}

func TestRunOnceTerminalFailureOnSixthAttempt(t *testing.T) {
	db := newTestDB(t)
	item := createContent(t, db, models.ContentStatusReadyToPublish)
	createDraft(t, db, item.ID, models.ChannelWeb)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// All five retried attempts exhausted; the claim makes this attempt six.
	job := createPendingJob(t, db, item.ID, now.Add(-time.Minute))
	db.Model(job).Update("attempt_count", 5)

	web := &fakePublisher{channel: models.ChannelWeb, results: []*publisher.PublishResult{
		publisher.Failure("still down", true),
	}}
	worker := newTestWorker(t, db, newTestOrchestrator(t, db, web), now)

	worker.RunOnce(context.Background())

	var reloaded models.PublishJob
	if err := db.First(&reloaded, job.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != models.JobStatusFailed {
		t.Errorf("job status = %s, want failed", reloaded.Status)
	}
	if reloaded.CompletedAt == nil {
		t.Error("CompletedAt not set on terminal failure")
	}
	if reloaded.AttemptCount != 6 {
		t.Errorf("AttemptCount = %d, want 6", reloaded.AttemptCount)
	}
	if reloaded.NextRetryAt != nil {
		t.Errorf("NextRetryAt = %v, want nil on terminal failure", reloaded.NextRetryAt)
	}
}

func TestRunOnceRetryCompletesAfterTransientFailure(t *testing.T) {
	db := newTestDB(t)
	item := createContent(t, db, models.ContentStatusReadyToPublish)
	createDraft(t, db, item.ID, models.ChannelWeb, models.ChannelPush)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	job := createPendingJob(t, db, item.ID, now.Add(-time.Minute))

	web := &fakePublisher{channel: models.ChannelWeb, results: []*publisher.PublishResult{successResult()}}
	push := &fakePublisher{channel: models.ChannelPush, results: []*publisher.PublishResult{
		publisher.Failure("gateway timeout", true),
		successResult(),
	}}
	worker := newTestWorker(t, db, newTestOrchestrator(t, db, web, push), now)

	worker.RunOnce(context.Background())

	// Advance past the first backoff step and poll again.
	worker.now = func() time.Time { return now.Add(2 * time.Minute) }
	worker.RunOnce(context.Background())

	var reloaded models.PublishJob
	if err := db.First(&reloaded, job.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != models.JobStatusSucceeded {
		t.Errorf("job status = %s, want succeeded after retry", reloaded.Status)
	}
	if reloaded.AttemptCount != 2 {
		t.Errorf("AttemptCount = %d, want 2", reloaded.AttemptCount)
	}

	// The web channel was only hit once; the ledger covered the retry.
	if web.calls != 1 {
		t.Errorf("web calls = %d, want 1", web.calls)
	}
	if push.calls != 2 {
		t.Errorf("push calls = %d, want 2", push.calls)
	}
}
