package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/newsgate/newsgate/internal/models"
)

// PolicyStore owns the publishing policy document and the daily publish
// counters derived from completed jobs.
type PolicyStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// DailyStats is today's publish count against a platform's limit.
// Limit 0 means unlimited.
type DailyStats struct {
	Platform string `json:"platform"`
	Count    int64  `json:"count"`
	Limit    int    `json:"limit"`
}

func NewPolicyStore(db *gorm.DB, logger *zap.Logger) *PolicyStore {
	return &PolicyStore{
		db:     db,
		logger: logger,
	}
}

// GetPolicy returns the stored policy document, or the defaults when no
// document has been saved yet. A corrupt stored document also falls back to
// defaults so scheduling never stops.
func (s *PolicyStore) GetPolicy() models.PublishingPolicy {
	var setting models.Setting
	err := s.db.Where("key = ?", models.PolicySettingKey).First(&setting).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("Failed to load publishing policy, using defaults", zap.Error(err))
		}
		return models.DefaultPublishingPolicy()
	}

	var policy models.PublishingPolicy
	if err := json.Unmarshal([]byte(setting.Value), &policy); err != nil {
		s.logger.Error("Stored publishing policy is not valid JSON, using defaults", zap.Error(err))
		return models.DefaultPublishingPolicy()
	}
	if policy.Platforms == nil {
		policy.Platforms = map[string]models.PlatformPolicy{}
	}
	if policy.Timezone == "" {
		policy.Timezone = "UTC"
	}
	return policy
}

// UpdatePolicy replaces the whole policy document.
func (s *PolicyStore) UpdatePolicy(policy models.PublishingPolicy) error {
	if policy.Timezone != "" {
		if _, err := time.LoadLocation(policy.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", policy.Timezone, err)
		}
	}

	value, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to encode policy: %w", err)
	}

	setting := models.Setting{Key: models.PolicySettingKey, Value: string(value)}
	return s.db.Save(&setting).Error
}

// GetEmergencyRules returns just the emergency sub-document.
func (s *PolicyStore) GetEmergencyRules() models.EmergencyRules {
	return s.GetPolicy().Emergency
}

// UpdateEmergencyRules replaces the emergency sub-document, keeping the rest
// of the policy as is.
func (s *PolicyStore) UpdateEmergencyRules(rules models.EmergencyRules) error {
	policy := s.GetPolicy()
	policy.Emergency = rules
	return s.UpdatePolicy(policy)
}

// Location resolves the policy's IANA zone, falling back to UTC when the id
// is invalid.
func (s *PolicyStore) Location(policy models.PublishingPolicy) *time.Location {
	loc, err := time.LoadLocation(policy.Timezone)
	if err != nil {
		s.logger.Warn("Invalid policy timezone, falling back to UTC",
			zap.String("timezone", policy.Timezone))
		return time.UTC
	}
	return loc
}

// GetDailyStats counts jobs completed "today" in the policy's zone against
// the platform's daily limit. Jobs are not tagged with a single platform, so
// the count covers all completed jobs; see DESIGN.md for this limitation.
func (s *PolicyStore) GetDailyStats(platform string) (DailyStats, error) {
	policy := s.GetPolicy()
	platformPolicy, ok := policy.Platforms[platform]
	if !ok {
		return DailyStats{}, fmt.Errorf("unknown platform %q", platform)
	}

	count, err := s.CompletedToday(policy)
	if err != nil {
		return DailyStats{}, err
	}

	return DailyStats{
		Platform: platform,
		Count:    count,
		Limit:    platformPolicy.DailyLimit,
	}, nil
}

// GetAllDailyStats returns today's stats for every configured platform.
func (s *PolicyStore) GetAllDailyStats() ([]DailyStats, error) {
	policy := s.GetPolicy()

	count, err := s.CompletedToday(policy)
	if err != nil {
		return nil, err
	}

	var stats []DailyStats
	for name, platformPolicy := range policy.Platforms {
		stats = append(stats, DailyStats{
			Platform: name,
			Count:    count,
			Limit:    platformPolicy.DailyLimit,
		})
	}
	return stats, nil
}

// CompletedToday counts succeeded jobs whose completion falls within today
// in the policy's configured zone.
func (s *PolicyStore) CompletedToday(policy models.PublishingPolicy) (int64, error) {
	loc := s.Location(policy)
	now := time.Now().In(loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	var count int64
	err := s.db.Model(&models.PublishJob{}).
		Where("status = ? AND completed_at >= ? AND completed_at < ?",
			models.JobStatusSucceeded, dayStart.UTC(), dayEnd.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count completed jobs: %w", err)
	}
	return count, nil
}

// LastCompletedAt returns the most recent job completion, or nil when none.
func (s *PolicyStore) LastCompletedAt() (*time.Time, error) {
	var job models.PublishJob
	err := s.db.Where("status = ? AND completed_at IS NOT NULL", models.JobStatusSucceeded).
		Order("completed_at DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job.CompletedAt, nil
}
