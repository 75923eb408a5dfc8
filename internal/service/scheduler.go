package service

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/newsgate/newsgate/internal/models"
)

// neverTime is the sentinel for "publishing is not going to happen".
var neverTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// ScheduleResult is the outcome of one scheduling decision.
type ScheduleResult struct {
	Platform        string    `json:"platform"`
	CanPublishNow   bool      `json:"can_publish_now"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	Reason          string    `json:"reason"`
	SilencePush     bool      `json:"silence_push"`
	DailyCount      int64     `json:"daily_count"`
	DailyLimit      int       `json:"daily_limit"`
	NightModeActive bool      `json:"night_mode_active"`
	WithinWindow    bool      `json:"within_window"`
}

// PublishScheduler decides whether a platform may publish now and, if not,
// the next allowed instant. All decisions consult the policy store; nothing
// is cached between calls.
type PublishScheduler struct {
	policyStore *PolicyStore
	logger      *zap.Logger
	now         func() time.Time
}

func NewPublishScheduler(policyStore *PolicyStore, logger *zap.Logger) *PublishScheduler {
	return &PublishScheduler{
		policyStore: policyStore,
		logger:      logger,
		now:         time.Now,
	}
}

// CalculateSchedule applies the policy rules in order; the first matching
// rule wins. Returned times are UTC.
func (s *PublishScheduler) CalculateSchedule(platform string, isEmergency bool) (*ScheduleResult, error) {
	policy := s.policyStore.GetPolicy()
	platformPolicy, ok := policy.Platforms[platform]
	if !ok {
		return nil, fmt.Errorf("unknown platform %q", platform)
	}

	loc := s.policyStore.Location(policy)
	localNow := s.now().In(loc)
	nightActive := inClockRange(localNow, platformPolicy.NightMode.Start, platformPolicy.NightMode.End)
	withinWindow := withinAnyWindow(localNow, platformPolicy.Windows)

	result := &ScheduleResult{
		Platform:        platform,
		DailyLimit:      platformPolicy.DailyLimit,
		NightModeActive: nightActive,
		WithinWindow:    withinWindow,
	}

	dailyCount, err := s.policyStore.CompletedToday(policy)
	if err != nil {
		return nil, err
	}
	result.DailyCount = dailyCount

	// 1. Platform disabled
	if !platformPolicy.Enabled {
		result.ScheduledAt = neverTime
		result.Reason = "platform disabled"
		return result, nil
	}

	// 2. Emergency override beats every other rule
	if isEmergency && platformPolicy.EmergencyOverride {
		result.CanPublishNow = true
		result.ScheduledAt = localNow.UTC()
		result.Reason = "emergency override"
		result.SilencePush = nightActive
		return result, nil
	}

	limitExhausted := platformPolicy.DailyLimit > 0 && dailyCount >= int64(platformPolicy.DailyLimit)

	// 3. Daily limit reached
	if limitExhausted {
		result.ScheduledAt = s.nextSlot(localNow, platformPolicy, true).UTC()
		result.Reason = "daily limit reached"
		return result, nil
	}

	// 4. Outside every allowed window
	if len(platformPolicy.Windows) > 0 && !withinWindow {
		result.ScheduledAt = s.nextSlot(localNow, platformPolicy, false).UTC()
		result.Reason = "outside allowed windows"
		return result, nil
	}

	// 5. Minimum interval since the last completed publish
	if platformPolicy.MinIntervalMinutes > 0 {
		last, err := s.policyStore.LastCompletedAt()
		if err != nil {
			return nil, err
		}
		if last != nil {
			earliest := last.Add(time.Duration(platformPolicy.MinIntervalMinutes) * time.Minute)
			if localNow.UTC().Before(earliest) {
				result.ScheduledAt = earliest.UTC()
				result.Reason = "rate limit"
				return result, nil
			}
		}
	}

	// 6. Night mode queues for morning
	if nightActive && platformPolicy.NightMode.QueueForMorning && !isEmergency {
		result.ScheduledAt = s.nextSlot(localNow, platformPolicy, false).UTC()
		result.Reason = "night mode"
		return result, nil
	}

	// 7. Clear to publish
	result.CanPublishNow = true
	result.ScheduledAt = localNow.UTC()
	result.Reason = "ok"
	result.SilencePush = nightActive && platformPolicy.NightMode.SilencePush
	return result, nil
}

// nextSlot finds the next allowed local instant. When the daily limit is
// exhausted the candidate is forced to tomorrow's first window regardless of
// today's remaining windows: the limit only resets at midnight.
func (s *PublishScheduler) nextSlot(localNow time.Time, p models.PlatformPolicy, limitExhausted bool) time.Time {
	windows := sortedWindows(p.Windows)

	if limitExhausted {
		return firstWindowStart(localNow.AddDate(0, 0, 1), windows)
	}

	if len(windows) == 0 {
		return localNow.Add(time.Duration(p.MinIntervalMinutes) * time.Minute)
	}

	if withinAnyWindow(localNow, windows) {
		return localNow.Add(time.Duration(p.MinIntervalMinutes) * time.Minute)
	}

	nowMin := localNow.Hour()*60 + localNow.Minute()
	for _, w := range windows {
		startMin, err := parseClock(w.Start)
		if err != nil {
			continue
		}
		if startMin > nowMin {
			return atClock(localNow, startMin)
		}
	}

	// No window left today
	return firstWindowStart(localNow.AddDate(0, 0, 1), windows)
}

func firstWindowStart(day time.Time, windows []models.TimeWindow) time.Time {
	if len(windows) == 0 {
		return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	}
	startMin, err := parseClock(windows[0].Start)
	if err != nil {
		startMin = 0
	}
	return atClock(day, startMin)
}

func sortedWindows(windows []models.TimeWindow) []models.TimeWindow {
	out := make([]models.TimeWindow, len(windows))
	copy(out, windows)
	sort.Slice(out, func(i, j int) bool {
		a, _ := parseClock(out[i].Start)
		b, _ := parseClock(out[j].Start)
		return a < b
	})
	return out
}

func withinAnyWindow(t time.Time, windows []models.TimeWindow) bool {
	for _, w := range windows {
		if inClockRange(t, w.Start, w.End) {
			return true
		}
	}
	return false
}

// inClockRange reports whether t's time of day falls in [start, end).
// Ranges with end before start wrap past midnight. Empty or malformed
// bounds disable the range.
func inClockRange(t time.Time, start, end string) bool {
	startMin, err := parseClock(start)
	if err != nil {
		return false
	}
	endMin, err := parseClock(end)
	if err != nil {
		return false
	}

	nowMin := t.Hour()*60 + t.Minute()
	if startMin <= endMin {
		return nowMin >= startMin && nowMin < endMin
	}
	return nowMin >= startMin || nowMin < endMin
}

func parseClock(clock string) (int, error) {
	if clock == "" {
		return 0, fmt.Errorf("empty clock value")
	}
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q: %w", clock, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func atClock(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}
