// Package recommend implements the three-stage recommendation pipeline:
// keyword retrieval over the candidate pool, weighted multi-signal
// ranking with a collaborative filtering component, and top-K selection.
package recommend

import "github.com/stellarlinkco/nudge/internal/store"

// Signal explanation types surfaced alongside a score.
const (
	SignalMatch          = "match"
	SignalReadingHistory = "reading_history"
	SignalSearchHistory  = "search_history"
	SignalSimilarUsers   = "similar_users"
	SignalTrending       = "trending"
	SignalTiming         = "timing"
)

// Signal explains one contribution to a candidate's score.
type Signal struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// ScoredCandidate is the ranking stage output: a candidate, its
// normalized score in [0, 1] and the signals that produced it.
type ScoredCandidate struct {
	Candidate store.Candidate `json:"candidate"`
	Score     float64         `json:"score"`
	Signals   []Signal        `json:"signals"`
}

// UserContext is a point-in-time snapshot of what the user is doing,
// fed into ranking's timing signal and the trigger decision.
type UserContext struct {
	UserID                   string   `json:"user_id"`
	CurrentActivity          string   `json:"current_activity"`
	RecentTopics             []string `json:"recent_topics"`
	TimeSinceLastInteraction int      `json:"time_since_last_interaction"`
	ReceptivityScore         float64  `json:"receptivity_score"`
}
