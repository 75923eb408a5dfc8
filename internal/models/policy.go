package models

import (
	"time"
)

// Setting is a single keyed JSON document. The publishing policy lives here
// under PolicySettingKey.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const PolicySettingKey = "publishing_policy"

// TimeWindow is a daily time-of-day range in the policy's zone, "HH:MM".
// End may be before Start for ranges that wrap past midnight.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// NightModeConfig silences or defers posts during a nightly range.
type NightModeConfig struct {
	Start           string `json:"start"`
	End             string `json:"end"`
	QueueForMorning bool   `json:"queue_for_morning"`
	SilencePush     bool   `json:"silence_push"`
}

type PlatformPolicy struct {
	Enabled            bool            `json:"enabled"`
	DailyLimit         int             `json:"daily_limit"`
	MinIntervalMinutes int             `json:"min_interval_minutes"`
	Windows            []TimeWindow    `json:"windows"`
	NightMode          NightModeConfig `json:"night_mode"`
	EmergencyOverride  bool            `json:"emergency_override"`
}

type EmergencyRules struct {
	Keywords        []string `json:"keywords"`
	Categories      []string `json:"categories"`
	TrustedSources  []string `json:"trusted_sources"`
	MinKeywordScore int      `json:"min_keyword_score"`
}

// PublishingPolicy is the versioned configuration document governing
// per-platform windows, limits and emergency rules. Persisted as a single
// JSON blob; read on every scheduling decision.
type PublishingPolicy struct {
	Timezone  string                    `json:"timezone"`
	Platforms map[string]PlatformPolicy `json:"platforms"`
	Emergency EmergencyRules            `json:"emergency"`
}

// DefaultPublishingPolicy is the document used until an admin saves one.
func DefaultPublishingPolicy() PublishingPolicy {
	allDay := []TimeWindow{{Start: "08:00", End: "22:00"}}
	night := NightModeConfig{Start: "23:00", End: "07:00", QueueForMorning: true, SilencePush: true}

	return PublishingPolicy{
		Timezone: "UTC",
		Platforms: map[string]PlatformPolicy{
			ChannelWeb: {
				Enabled:           true,
				EmergencyOverride: true,
			},
			ChannelPush: {
				Enabled:            true,
				DailyLimit:         10,
				MinIntervalMinutes: 15,
				Windows:            allDay,
				NightMode:          night,
				EmergencyOverride:  true,
			},
			ChannelTwitter: {
				Enabled:            true,
				DailyLimit:         20,
				MinIntervalMinutes: 10,
				Windows:            allDay,
				NightMode:          night,
				EmergencyOverride:  true,
			},
			ChannelInstagram: {
				Enabled:            true,
				DailyLimit:         5,
				MinIntervalMinutes: 60,
				Windows:            allDay,
				NightMode:          night,
				EmergencyOverride:  false,
			},
		},
		Emergency: EmergencyRules{
			Keywords:        []string{"breaking", "urgent", "explosion", "earthquake", "evacuation"},
			Categories:      []string{"disaster", "security", "weather-alert"},
			TrustedSources:  []string{},
			MinKeywordScore: 2,
		},
	}
}
