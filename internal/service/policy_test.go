package service

import (
	"testing"
	"time"

	"github.com/newsgate/newsgate/internal/models"
)

func TestGetPolicyReturnsDefaultsWhenUnset(t *testing.T) {
	db := newTestDB(t)
	store := newTestPolicyStore(t, db)

	policy := store.GetPolicy()
	if policy.Timezone == "" {
		t.Error("default policy has no timezone")
	}
	for _, platform := range []string{
		models.ChannelWeb, models.ChannelPush, models.ChannelTwitter, models.ChannelInstagram,
	} {
		if _, ok := policy.Platforms[platform]; !ok {
			t.Errorf("default policy missing platform %s", platform)
		}
	}
}

func TestUpdatePolicyRoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := newTestPolicyStore(t, db)

	in := models.PublishingPolicy{
		Timezone: "Europe/Berlin",
		Platforms: map[string]models.PlatformPolicy{
			models.ChannelTwitter: {
				Enabled:            true,
				DailyLimit:         12,
				MinIntervalMinutes: 20,
				Windows:            []models.TimeWindow{{Start: "08:00", End: "21:00"}},
			},
		},
		Emergency: models.EmergencyRules{
			Keywords:        []string{"earthquake"},
			MinKeywordScore: 1,
		},
	}
	if err := store.UpdatePolicy(in); err != nil {
		t.Fatalf("UpdatePolicy: %v", err)
	}

	out := store.GetPolicy()
	if out.Timezone != "Europe/Berlin" {
		t.Errorf("Timezone = %q", out.Timezone)
	}
	tw, ok := out.Platforms[models.ChannelTwitter]
	if !ok {
		t.Fatal("twitter platform missing after round trip")
	}
	if tw.DailyLimit != 12 || tw.MinIntervalMinutes != 20 {
		t.Errorf("platform policy = %+v", tw)
	}
	if len(out.Emergency.Keywords) != 1 || out.Emergency.Keywords[0] != "earthquake" {
		t.Errorf("emergency rules = %+v", out.Emergency)
	}
}

func TestUpdatePolicyRejectsInvalidTimezone(t *testing.T) {
	db := newTestDB(t)
	store := newTestPolicyStore(t, db)

	err := store.UpdatePolicy(models.PublishingPolicy{Timezone: "Mars/Olympus_Mons"})
	if err == nil {
		t.Fatal("expected invalid timezone to be rejected")
	}
}

func TestGetPolicyFallsBackOnCorruptDocument(t *testing.T) {
	db := newTestDB(t)
	store := newTestPolicyStore(t, db)

	setting := models.Setting{Key: models.PolicySettingKey, Value: "{not json"}
	if err := db.Save(&setting).Error; err != nil {
		t.Fatalf("save corrupt setting: %v", err)
	}

	policy := store.GetPolicy()
	if len(policy.Platforms) == 0 {
		t.Error("corrupt document should fall back to defaults")
	}
}

func TestUpdateEmergencyRulesKeepsRestOfPolicy(t *testing.T) {
	db := newTestDB(t)
	store := newTestPolicyStore(t, db)

	if err := store.UpdatePolicy(models.PublishingPolicy{
		Timezone: "Europe/Berlin",
		Platforms: map[string]models.PlatformPolicy{
			models.ChannelWeb: {Enabled: true},
		},
	}); err != nil {
		t.Fatalf("UpdatePolicy: %v", err)
	}

	if err := store.UpdateEmergencyRules(models.EmergencyRules{
		Keywords:        []string{"wildfire"},
		MinKeywordScore: 1,
	}); err != nil {
		t.Fatalf("UpdateEmergencyRules: %v", err)
	}

	policy := store.GetPolicy()
	if policy.Timezone != "Europe/Berlin" {
		t.Errorf("Timezone changed to %q", policy.Timezone)
	}
	if _, ok := policy.Platforms[models.ChannelWeb]; !ok {
		t.Error("platform section lost")
	}
	if len(policy.Emergency.Keywords) != 1 || policy.Emergency.Keywords[0] != "wildfire" {
		t.Errorf("emergency rules = %+v", policy.Emergency)
	}
}

func TestCompletedTodayCountsOnlyToday(t *testing.T) {
	db := newTestDB(t)
	store := newTestPolicyStore(t, db)
	item := createContent(t, db, models.ContentStatusPublished)

	createCompletedJob(t, db, item.ID, time.Now().UTC())
	createCompletedJob(t, db, item.ID, time.Now().UTC().Add(-48*time.Hour))

	count, err := store.CompletedToday(models.PublishingPolicy{Timezone: "UTC"})
	if err != nil {
		t.Fatalf("CompletedToday: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestGetDailyStatsUnknownPlatform(t *testing.T) {
	db := newTestDB(t)
	store := newTestPolicyStore(t, db)

	if _, err := store.GetDailyStats("myspace"); err == nil {
		t.Fatal("expected error for unknown platform")
	}
}

func TestLastCompletedAt(t *testing.T) {
	db := newTestDB(t)
	store := newTestPolicyStore(t, db)

	last, err := store.LastCompletedAt()
	if err != nil {
		t.Fatalf("LastCompletedAt: %v", err)
	}
	if last != nil {
		t.Errorf("expected nil with no completed jobs, got %v", last)
	}

	item := createContent(t, db, models.ContentStatusPublished)
	older := time.Now().UTC().Add(-2 * time.Hour)
	newer := time.Now().UTC().Add(-10 * time.Minute)
	createCompletedJob(t, db, item.ID, older)
	createCompletedJob(t, db, item.ID, newer)

	last, err = store.LastCompletedAt()
	if err != nil {
		t.Fatalf("LastCompletedAt: %v", err)
	}
	if last == nil {
		t.Fatal("expected a completion time")
	}
	if diff := last.Sub(newer); diff < -time.Second || diff > time.Second {
		t.Errorf("LastCompletedAt = %v, want about %v", last, newer)
	}
}
