package store

// Content categories.
const (
	CategoryLearning     = "learning"
	CategoryWork         = "work"
	CategoryNews         = "news"
	CategoryHealth       = "health"
	CategoryProductivity = "productivity"
)

// Feedback actions.
const (
	ActionStarted          = "started"
	ActionDismissed        = "dismissed"
	ActionIgnored          = "ignored"
	ActionReplied          = "replied"
	ActionDontShowLikeThis = "dont_show_like_this"
)

// Delivery frequency preferences.
const (
	FrequencyRarely    = "rarely"
	FrequencySometimes = "sometimes"
	FrequencyOften     = "often"
)

// Candidate priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ActionDeltas maps a feedback action to the engagement score delta it
// applies to the referenced candidate. Exactly one delta per feedback row.
var ActionDeltas = map[string]float64{
	ActionStarted:          1.0,
	ActionReplied:          0.5,
	ActionDismissed:        -0.3,
	ActionIgnored:          -0.1,
	ActionDontShowLikeThis: -1.0,
}

// Candidate is a recommendable content item.
type Candidate struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Summary         string   `json:"summary"`
	Category        string   `json:"category"`
	Keywords        []string `json:"keywords"`
	Source          string   `json:"source"`
	EngagementScore float64  `json:"engagement_score"`
	CreatedAt       string   `json:"created_at"`
	ContentType     string   `json:"content_type"`
	Difficulty      string   `json:"difficulty"`
	Priority        string   `json:"priority"`
}

// MatchesInterests counts how many of the given interests appear in the
// candidate's keyword set.
func (c *Candidate) MatchesInterests(interests []string) int {
	keywords := make(map[string]struct{}, len(c.Keywords))
	for _, k := range c.Keywords {
		keywords[k] = struct{}{}
	}
	matched := make(map[string]struct{}, len(interests))
	for _, interest := range interests {
		if _, ok := keywords[interest]; ok {
			matched[interest] = struct{}{}
		}
	}
	return len(matched)
}

// User is a profile with explicit interests and delivery preferences.
// PreferredHourStart/End define a wraparound-aware daily window [start, end).
type User struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Email              string   `json:"email,omitempty"`
	TopicsOfInterest   []string `json:"topics_of_interest"`
	Frequency          string   `json:"frequency"`
	PreferredHourStart int      `json:"preferred_hour_start"`
	PreferredHourEnd   int      `json:"preferred_hour_end"`
	PausedUntil        string   `json:"paused_until,omitempty"`
	CreatedAt          string   `json:"created_at"`
}

// Activity is a single append-only user activity event.
type Activity struct {
	ID           string   `json:"id"`
	UserID       string   `json:"user_id"`
	ActivityType string   `json:"activity_type"`
	Timestamp    string   `json:"timestamp"`
	Keywords     []string `json:"keywords,omitempty"`
	Query        string   `json:"query,omitempty"`
	RelatedID    string   `json:"related_id,omitempty"`
}

// Feedback is a user reaction to a shown candidate.
type Feedback struct {
	ID                string `json:"id"`
	UserID            string `json:"user_id"`
	CandidateID       string `json:"candidate_id"`
	Action            string `json:"action"`
	ConversationTurns int    `json:"conversation_turns,omitempty"`
	CreatedAt         string `json:"created_at"`
}

// FeedbackStats aggregates a user's feedback history by action.
type FeedbackStats struct {
	Total     int `json:"total"`
	Started   int `json:"started"`
	Dismissed int `json:"dismissed"`
	Ignored   int `json:"ignored"`
	Replied   int `json:"replied"`
}

// UserScore pairs a user with a Jaccard similarity to some target user.
type UserScore struct {
	UserID     string
	Similarity float64
}

// CandidateScore pairs a candidate with a weighted engagement score.
type CandidateScore struct {
	CandidateID string
	Score       float64
}

// CandidateCount pairs a candidate with a positive engagement count.
type CandidateCount struct {
	CandidateID string
	Count       int
}

// Analytics is a snapshot of pool size and engagement used by status reporting.
type Analytics struct {
	TotalCandidates int            `json:"total_candidates"`
	TotalUsers      int            `json:"total_users"`
	TotalFeedback   int            `json:"total_feedback"`
	EngagementRate  float64        `json:"engagement_rate"`
	CategoryCounts  map[string]int `json:"category_counts"`
	RecentActivity  []Activity     `json:"recent_activity"`
}
