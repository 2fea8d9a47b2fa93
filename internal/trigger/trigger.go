// Package trigger decides when a proactive suggestion is actually
// delivered. Bad timing causes interruption fatigue and opt-outs, so
// every delivery passes an ordered set of guards over user consent,
// timing windows, frequency limits and live context.
package trigger

import (
	"fmt"
	"time"

	"github.com/stellarlinkco/nudge/internal/recommend"
	"github.com/stellarlinkco/nudge/internal/store"
)

// Decision is the outcome of a trigger evaluation.
type Decision string

const (
	DecisionTrigger Decision = "trigger"
	DecisionWait    Decision = "wait"
	DecisionQueue   Decision = "queue"
	DecisionSkip    Decision = "skip"
)

// Minimum hours between proactive messages by frequency preference.
var minIntervals = map[string]int{
	store.FrequencyRarely:    72,
	store.FrequencySometimes: 24,
	store.FrequencyOften:     4,
}

const defaultMinInterval = 24

// qualityFloor rejects weak recommendations before any delivery cost is
// paid.
const qualityFloor = 0.5

// Result carries the decision, a human-readable reason, the suggested
// retry delay for non-terminal decisions and a delivery priority.
type Result struct {
	Decision   Decision      `json:"decision"`
	Reason     string        `json:"reason"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Priority   float64       `json:"priority"`
}

// Service evaluates whether to deliver a recommendation to a user now.
type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(s store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

// ShouldTrigger runs the guards in order and returns the first decisive
// result. Guard order is part of the contract: consent first, then
// timing, then content quality, then live context.
func (s *Service) ShouldTrigger(user *store.User, rec *recommend.ScoredCandidate, ctx *recommend.UserContext) Result {
	now := s.now()

	// Pause wins over everything. Unparseable pause values are ignored.
	if user.PausedUntil != "" {
		if pauseEnd, ok := parseTime(user.PausedUntil); ok && now.Before(pauseEnd) {
			return Result{
				Decision:   DecisionWait,
				Reason:     "User has paused notifications",
				RetryAfter: pauseEnd.Sub(now),
				Priority:   0.5,
			}
		}
	}

	// Preferred delivery window [start, end), wraparound aware.
	hour := now.Hour()
	if !inWindow(hour, user.PreferredHourStart, user.PreferredHourEnd) {
		hoursUntil := ((user.PreferredHourStart - hour) % 24 + 24) % 24
		return Result{
			Decision:   DecisionQueue,
			Reason:     fmt.Sprintf("Outside preferred hours (%d:00-%d:00)", user.PreferredHourStart, user.PreferredHourEnd),
			RetryAfter: time.Duration(hoursUntil) * time.Hour,
			Priority:   0.5,
		}
	}

	// Frequency limit, skipped when the user has no feedback history.
	minInterval := defaultMinInterval
	if v, ok := minIntervals[user.Frequency]; ok {
		minInterval = v
	}
	if lastAt, ok := s.lastMessageTime(user.ID); ok {
		hoursSince := now.Sub(lastAt).Hours()
		if hoursSince < float64(minInterval) {
			return Result{
				Decision:   DecisionWait,
				Reason:     fmt.Sprintf("Too soon since last message (%.1fh < %dh)", hoursSince, minInterval),
				RetryAfter: time.Duration((float64(minInterval) - hoursSince) * float64(time.Hour)),
				Priority:   0.5,
			}
		}
	}

	// Content quality floor. SKIP is terminal; priority carries the raw
	// score for observability.
	if rec.Score < qualityFloor {
		return Result{
			Decision: DecisionSkip,
			Reason:   fmt.Sprintf("Recommendation score too low (%.2f)", rec.Score),
			Priority: rec.Score,
		}
	}

	priority := s.computePriority(rec, now)

	if ctx != nil {
		if ctx.CurrentActivity == "deep_work" {
			return Result{
				Decision:   DecisionQueue,
				Reason:     "User is in deep work mode",
				RetryAfter: time.Hour,
				Priority:   priority,
			}
		}
		if ctx.ReceptivityScore < 0.3 {
			return Result{
				Decision:   DecisionWait,
				Reason:     fmt.Sprintf("Low receptivity score (%.2f)", ctx.ReceptivityScore),
				RetryAfter: 30 * time.Minute,
				Priority:   priority,
			}
		}
	}

	return Result{
		Decision: DecisionTrigger,
		Reason:   "All conditions met",
		Priority: priority,
	}
}

func (s *Service) lastMessageTime(userID string) (time.Time, bool) {
	at, err := s.store.LastFeedbackAt(userID)
	if err != nil || at == "" {
		return time.Time{}, false
	}
	return parseTime(at)
}

// computePriority orders queued deliveries: raw score boosted for
// high-priority content and for work items during work hours, capped
// at 1.0.
func (s *Service) computePriority(rec *recommend.ScoredCandidate, now time.Time) float64 {
	priority := rec.Score

	switch rec.Candidate.Priority {
	case store.PriorityHigh:
		priority *= 1.3
	case store.PriorityLow:
		priority *= 0.8
	}

	hour := now.Hour()
	if hour >= 9 && hour <= 17 && rec.Candidate.Category == store.CategoryWork {
		priority *= 1.2
	}

	if priority > 1.0 {
		priority = 1.0
	}
	return priority
}

// inWindow reports whether hour falls in [start, end), treating
// start > end as a window wrapping past midnight. An empty window
// (start == end) admits nothing.
func inWindow(hour, start, end int) bool {
	if start <= end {
		return start <= hour && hour < end
	}
	return hour >= start || hour < end
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTime(value string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
