package store

// Store is the storage collaborator consumed by the recommendation and
// trigger services. Reads and writes are atomic request/response operations;
// callers treat failures as fatal for the current evaluation and do not retry.
type Store interface {
	// Candidate operations.
	AllCandidates() ([]Candidate, error)
	CandidateByID(id string) (*Candidate, error)
	// CandidatesByKeywords returns candidates whose keyword set intersects
	// the given keywords, sorted by engagement score descending.
	CandidatesByKeywords(keywords []string, limit int) ([]Candidate, error)
	AddCandidate(c Candidate) error
	UpdateCandidateScore(id string, delta float64) error

	// User operations.
	UserByID(id string) (*User, error)
	AllUsers() ([]User, error)
	CreateUser(u User) error
	UpdatePreferences(userID string, prefs Preferences) (*User, error)
	SetPause(userID, until string) error
	ClearPause(userID string) error

	// Activity operations.
	AddActivity(a Activity) (string, error)
	// RecentActivity returns the user's activity sorted by timestamp descending.
	RecentActivity(userID string, limit int) ([]Activity, error)
	// UserKeywords mines keywords from the user's last 20 activity records:
	// activity keywords plus lowercase tokens of any free-text query, deduplicated.
	UserKeywords(userID string) ([]string, error)

	// Feedback operations.
	// RecordFeedback appends a feedback row and applies the action's
	// engagement delta to the referenced candidate.
	RecordFeedback(f Feedback) (string, error)
	ShownCandidates(userID string) (map[string]struct{}, error)
	FeedbackStats(userID string) (FeedbackStats, error)
	// LastFeedbackAt returns the most recent feedback created_at for the
	// user, or "" when the user has no feedback.
	LastFeedbackAt(userID string) (string, error)

	// Collaborative filtering operations.
	SimilarUsers(userID string, limit int) ([]UserScore, error)
	CandidatesEngagedBySimilarUsers(userID string, limit int) ([]CandidateScore, error)
	PopularCandidates(limit int) ([]CandidateCount, error)
}

// Preferences carries optional user preference updates; nil fields are
// left untouched.
type Preferences struct {
	TopicsOfInterest   []string
	Frequency          *string
	PreferredHourStart *int
	PreferredHourEnd   *int
}
