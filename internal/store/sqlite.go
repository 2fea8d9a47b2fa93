package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	defaultSimilarUserLimit = 10
	activityMiningLimit     = 20
)

// SQLite is the sqlite-backed Store implementation.
type SQLite struct {
	db         *sql.DB
	mu         sync.Mutex
	onFeedback []func(userID string)
	hookMu     sync.RWMutex
}

// NewSQLite opens (creating if needed) the database at dbPath.
func NewSQLite(dbPath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candidates (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT 'learning',
			keywords TEXT NOT NULL DEFAULT '[]',
			source TEXT NOT NULL DEFAULT '',
			engagement_score REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL DEFAULT 'article',
			difficulty TEXT NOT NULL DEFAULT 'intermediate',
			priority TEXT NOT NULL DEFAULT 'medium'
		)`,
		`CREATE TABLE IF NOT EXISTS candidate_keywords (
			candidate_id TEXT NOT NULL,
			keyword TEXT NOT NULL,
			PRIMARY KEY (candidate_id, keyword)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_candidate_keywords_kw ON candidate_keywords(keyword)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			topics TEXT NOT NULL DEFAULT '[]',
			frequency TEXT NOT NULL DEFAULT 'sometimes',
			preferred_hour_start INTEGER NOT NULL DEFAULT 9,
			preferred_hour_end INTEGER NOT NULL DEFAULT 18,
			paused_until TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS activity (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			activity_type TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL DEFAULT '[]',
			query TEXT NOT NULL DEFAULT '',
			related_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_user ON activity(user_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS feedback (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			candidate_id TEXT NOT NULL,
			action TEXT NOT NULL,
			conversation_turns INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_user ON feedback(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_candidate ON feedback(candidate_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// OnFeedback registers a hook invoked after every recorded feedback row.
// Used to drive event-based cache invalidation.
func (s *SQLite) OnFeedback(fn func(userID string)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onFeedback = append(s.onFeedback, fn)
}

func (s *SQLite) notifyFeedback(userID string) {
	s.hookMu.RLock()
	hooks := make([]func(string), len(s.onFeedback))
	copy(hooks, s.onFeedback)
	s.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(userID)
	}
}

// Candidate operations

func (s *SQLite) AllCandidates() ([]Candidate, error) {
	rows, err := s.db.Query(`
		SELECT id, title, summary, category, keywords, source, engagement_score,
		       created_at, content_type, difficulty, priority
		FROM candidates
		ORDER BY created_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("all candidates: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

func (s *SQLite) CandidateByID(id string) (*Candidate, error) {
	rows, err := s.db.Query(`
		SELECT id, title, summary, category, keywords, source, engagement_score,
		       created_at, content_type, difficulty, priority
		FROM candidates
		WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("candidate by id: %w", err)
	}
	defer rows.Close()

	candidates, err := scanCandidates(rows)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}

func (s *SQLite) CandidatesByKeywords(keywords []string, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 100
	}
	unique := dedupe(keywords)
	if len(unique) == 0 {
		return nil, nil
	}

	query := `
		SELECT c.id, c.title, c.summary, c.category, c.keywords, c.source,
		       c.engagement_score, c.created_at, c.content_type, c.difficulty, c.priority
		FROM candidates c
		JOIN candidate_keywords k ON c.id = k.candidate_id
		WHERE k.keyword IN (` + placeholders(len(unique)) + `)
		GROUP BY c.id
		ORDER BY c.engagement_score DESC, c.id ASC
		LIMIT ?
	`
	args := make([]any, 0, len(unique)+1)
	for _, kw := range unique {
		args = append(args, kw)
	}
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("candidates by keywords: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

func (s *SQLite) AddCandidate(c Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(c.ID) == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt == "" {
		c.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	keywords, err := json.Marshal(dedupe(c.Keywords))
	if err != nil {
		return fmt.Errorf("marshal candidate keywords: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin add candidate: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO candidates (id, title, summary, category, keywords, source,
		                        engagement_score, created_at, content_type, difficulty, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Title, c.Summary, c.Category, string(keywords), c.Source,
		c.EngagementScore, c.CreatedAt, c.ContentType, c.Difficulty, c.Priority)
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}

	for _, kw := range dedupe(c.Keywords) {
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO candidate_keywords (candidate_id, keyword) VALUES (?, ?)
		`, c.ID, kw); err != nil {
			return fmt.Errorf("insert candidate keyword: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add candidate: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateCandidateScore(id string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		UPDATE candidates SET engagement_score = engagement_score + ? WHERE id = ?
	`, delta, id)
	if err != nil {
		return fmt.Errorf("update candidate score: %w", err)
	}
	return nil
}

// User operations

func (s *SQLite) UserByID(id string) (*User, error) {
	rows, err := s.db.Query(`
		SELECT id, name, email, topics, frequency, preferred_hour_start,
		       preferred_hour_end, paused_until, created_at
		FROM users
		WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("user by id: %w", err)
	}
	defer rows.Close()

	users, err := scanUsers(rows)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

func (s *SQLite) AllUsers() ([]User, error) {
	rows, err := s.db.Query(`
		SELECT id, name, email, topics, frequency, preferred_hour_start,
		       preferred_hour_end, paused_until, created_at
		FROM users
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("all users: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (s *SQLite) CreateUser(u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Frequency == "" {
		u.Frequency = FrequencySometimes
	}
	if u.PreferredHourEnd == 0 && u.PreferredHourStart == 0 {
		u.PreferredHourStart = 9
		u.PreferredHourEnd = 18
	}
	if u.CreatedAt == "" {
		u.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	topics, err := json.Marshal(dedupe(u.TopicsOfInterest))
	if err != nil {
		return fmt.Errorf("marshal user topics: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO users (id, name, email, topics, frequency, preferred_hour_start,
		                   preferred_hour_end, paused_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, string(topics), u.Frequency,
		u.PreferredHourStart, u.PreferredHourEnd, u.PausedUntil, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLite) UpdatePreferences(userID string, prefs Preferences) (*User, error) {
	s.mu.Lock()

	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if prefs.TopicsOfInterest != nil {
		topics, err := json.Marshal(dedupe(prefs.TopicsOfInterest))
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("marshal user topics: %w", err)
		}
		sets = append(sets, "topics = ?")
		args = append(args, string(topics))
	}
	if prefs.Frequency != nil {
		sets = append(sets, "frequency = ?")
		args = append(args, *prefs.Frequency)
	}
	if prefs.PreferredHourStart != nil {
		sets = append(sets, "preferred_hour_start = ?")
		args = append(args, *prefs.PreferredHourStart)
	}
	if prefs.PreferredHourEnd != nil {
		sets = append(sets, "preferred_hour_end = ?")
		args = append(args, *prefs.PreferredHourEnd)
	}

	if len(sets) > 0 {
		args = append(args, userID)
		_, err := s.db.Exec(`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("update preferences: %w", err)
		}
	}
	s.mu.Unlock()

	return s.UserByID(userID)
}

func (s *SQLite) SetPause(userID, until string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE users SET paused_until = ? WHERE id = ?`, until, userID)
	if err != nil {
		return fmt.Errorf("set pause: %w", err)
	}
	return nil
}

func (s *SQLite) ClearPause(userID string) error {
	return s.SetPause(userID, "")
}

// Activity operations

func (s *SQLite) AddActivity(a Activity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(a.ID) == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp == "" {
		a.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	keywords, err := json.Marshal(a.Keywords)
	if err != nil {
		return "", fmt.Errorf("marshal activity keywords: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO activity (id, user_id, activity_type, timestamp, keywords, query, related_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.UserID, a.ActivityType, a.Timestamp, string(keywords), a.Query, a.RelatedID)
	if err != nil {
		return "", fmt.Errorf("insert activity: %w", err)
	}
	return a.ID, nil
}

func (s *SQLite) RecentActivity(userID string, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, activity_type, timestamp, keywords, query, related_id
		FROM activity
		WHERE user_id = ?
		ORDER BY timestamp DESC, id ASC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close()

	result := make([]Activity, 0)
	for rows.Next() {
		var a Activity
		var keywords string
		if err := rows.Scan(&a.ID, &a.UserID, &a.ActivityType, &a.Timestamp, &keywords, &a.Query, &a.RelatedID); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &a.Keywords); err != nil {
			return nil, fmt.Errorf("decode activity keywords: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return result, nil
}

func (s *SQLite) UserKeywords(userID string) ([]string, error) {
	activities, err := s.RecentActivity(userID, activityMiningLimit)
	if err != nil {
		return nil, err
	}

	keywords := make([]string, 0)
	seen := make(map[string]struct{})
	add := func(kw string) {
		if kw == "" {
			return
		}
		if _, ok := seen[kw]; ok {
			return
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
	}

	for _, a := range activities {
		for _, kw := range a.Keywords {
			add(kw)
		}
		if a.Query != "" {
			for _, tok := range strings.Fields(strings.ToLower(a.Query)) {
				add(tok)
			}
		}
	}
	return keywords, nil
}

// Feedback operations

func (s *SQLite) RecordFeedback(f Feedback) (string, error) {
	s.mu.Lock()

	if strings.TrimSpace(f.ID) == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt == "" {
		f.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	_, err := s.db.Exec(`
		INSERT INTO feedback (id, user_id, candidate_id, action, conversation_turns, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.ID, f.UserID, f.CandidateID, f.Action, f.ConversationTurns, f.CreatedAt)
	if err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("insert feedback: %w", err)
	}
	s.mu.Unlock()

	if delta, ok := ActionDeltas[f.Action]; ok && delta != 0 {
		if err := s.UpdateCandidateScore(f.CandidateID, delta); err != nil {
			return "", err
		}
	}

	s.notifyFeedback(f.UserID)
	return f.ID, nil
}

func (s *SQLite) ShownCandidates(userID string) (map[string]struct{}, error) {
	rows, err := s.db.Query(`SELECT candidate_id FROM feedback WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("shown candidates: %w", err)
	}
	defer rows.Close()

	shown := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan shown candidate: %w", err)
		}
		shown[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shown candidates: %w", err)
	}
	return shown, nil
}

func (s *SQLite) FeedbackStats(userID string) (FeedbackStats, error) {
	rows, err := s.db.Query(`SELECT action FROM feedback WHERE user_id = ?`, userID)
	if err != nil {
		return FeedbackStats{}, fmt.Errorf("feedback stats: %w", err)
	}
	defer rows.Close()

	var stats FeedbackStats
	for rows.Next() {
		var action string
		if err := rows.Scan(&action); err != nil {
			return FeedbackStats{}, fmt.Errorf("scan feedback action: %w", err)
		}
		stats.Total++
		switch action {
		case ActionStarted:
			stats.Started++
		case ActionDismissed:
			stats.Dismissed++
		case ActionIgnored:
			stats.Ignored++
		case ActionReplied:
			stats.Replied++
		}
	}
	if err := rows.Err(); err != nil {
		return FeedbackStats{}, fmt.Errorf("iterate feedback stats: %w", err)
	}
	return stats, nil
}

func (s *SQLite) LastFeedbackAt(userID string) (string, error) {
	row := s.db.QueryRow(`
		SELECT COALESCE(MAX(created_at), '') FROM feedback WHERE user_id = ?
	`, userID)
	var at string
	if err := row.Scan(&at); err != nil {
		return "", fmt.Errorf("last feedback at: %w", err)
	}
	return at, nil
}

// Collaborative filtering operations

func (s *SQLite) SimilarUsers(userID string, limit int) ([]UserScore, error) {
	if limit <= 0 {
		limit = defaultSimilarUserLimit
	}

	target, err := s.UserByID(userID)
	if err != nil {
		return nil, err
	}
	if target == nil || len(target.TopicsOfInterest) == 0 {
		return nil, nil
	}
	targetTopics := toSet(target.TopicsOfInterest)

	users, err := s.AllUsers()
	if err != nil {
		return nil, err
	}

	scores := make([]UserScore, 0)
	for _, u := range users {
		if u.ID == userID || len(u.TopicsOfInterest) == 0 {
			continue
		}
		sim := jaccard(targetTopics, toSet(u.TopicsOfInterest))
		if sim > 0 {
			scores = append(scores, UserScore{UserID: u.ID, Similarity: sim})
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Similarity > scores[j].Similarity
	})
	if len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}

func (s *SQLite) CandidatesEngagedBySimilarUsers(userID string, limit int) ([]CandidateScore, error) {
	if limit <= 0 {
		limit = 20
	}

	similar, err := s.SimilarUsers(userID, defaultSimilarUserLimit)
	if err != nil {
		return nil, err
	}
	if len(similar) == 0 {
		return nil, nil
	}

	seen, err := s.ShownCandidates(userID)
	if err != nil {
		return nil, err
	}

	accumulated := make(map[string]float64)
	order := make([]string, 0)
	for _, su := range similar {
		rows, err := s.db.Query(`
			SELECT candidate_id, action FROM feedback
			WHERE user_id = ? AND action IN (?, ?)
		`, su.UserID, ActionStarted, ActionReplied)
		if err != nil {
			return nil, fmt.Errorf("similar user feedback: %w", err)
		}
		for rows.Next() {
			var candidateID, action string
			if err := rows.Scan(&candidateID, &action); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan similar user feedback: %w", err)
			}
			if _, shown := seen[candidateID]; shown {
				continue
			}
			weight := 1.0
			if action == ActionReplied {
				weight = 0.5
			}
			if _, ok := accumulated[candidateID]; !ok {
				order = append(order, candidateID)
			}
			accumulated[candidateID] += su.Similarity * weight
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate similar user feedback: %w", err)
		}
		rows.Close()
	}

	scores := make([]CandidateScore, 0, len(order))
	for _, id := range order {
		scores = append(scores, CandidateScore{CandidateID: id, Score: accumulated[id]})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	if len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}

func (s *SQLite) PopularCandidates(limit int) ([]CandidateCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT candidate_id, COUNT(*) AS cnt
		FROM feedback
		WHERE action IN (?, ?)
		GROUP BY candidate_id
		ORDER BY cnt DESC, candidate_id ASC
		LIMIT ?
	`, ActionStarted, ActionReplied, limit)
	if err != nil {
		return nil, fmt.Errorf("popular candidates: %w", err)
	}
	defer rows.Close()

	result := make([]CandidateCount, 0)
	for rows.Next() {
		var cc CandidateCount
		if err := rows.Scan(&cc.CandidateID, &cc.Count); err != nil {
			return nil, fmt.Errorf("scan popular candidate: %w", err)
		}
		result = append(result, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate popular candidates: %w", err)
	}
	return result, nil
}

// Stats returns an analytics snapshot for status reporting.
func (s *SQLite) Stats() (*Analytics, error) {
	a := &Analytics{CategoryCounts: make(map[string]int)}

	candidates, err := s.AllCandidates()
	if err != nil {
		return nil, err
	}
	a.TotalCandidates = len(candidates)
	for _, c := range candidates {
		a.CategoryCounts[c.Category]++
	}

	row := s.db.QueryRow(`SELECT COUNT(*) FROM users`)
	if err := row.Scan(&a.TotalUsers); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	row = s.db.QueryRow(`SELECT COUNT(*) FROM feedback`)
	if err := row.Scan(&a.TotalFeedback); err != nil {
		return nil, fmt.Errorf("count feedback: %w", err)
	}
	if a.TotalFeedback > 0 {
		var engaged int
		row = s.db.QueryRow(`SELECT COUNT(*) FROM feedback WHERE action IN (?, ?)`, ActionStarted, ActionReplied)
		if err := row.Scan(&engaged); err != nil {
			return nil, fmt.Errorf("count engaged feedback: %w", err)
		}
		a.EngagementRate = float64(engaged) / float64(a.TotalFeedback)
	}

	rows, err := s.db.Query(`
		SELECT id, user_id, activity_type, timestamp, keywords, query, related_id
		FROM activity
		ORDER BY timestamp DESC, id ASC
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("recent global activity: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var act Activity
		var keywords string
		if err := rows.Scan(&act.ID, &act.UserID, &act.ActivityType, &act.Timestamp, &keywords, &act.Query, &act.RelatedID); err != nil {
			return nil, fmt.Errorf("scan recent activity: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &act.Keywords); err != nil {
			return nil, fmt.Errorf("decode recent activity keywords: %w", err)
		}
		a.RecentActivity = append(a.RecentActivity, act)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent activity: %w", err)
	}

	return a, nil
}

// helpers

func scanCandidates(rows *sql.Rows) ([]Candidate, error) {
	result := make([]Candidate, 0)
	for rows.Next() {
		var c Candidate
		var keywords string
		if err := rows.Scan(
			&c.ID,
			&c.Title,
			&c.Summary,
			&c.Category,
			&keywords,
			&c.Source,
			&c.EngagementScore,
			&c.CreatedAt,
			&c.ContentType,
			&c.Difficulty,
			&c.Priority,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &c.Keywords); err != nil {
			return nil, fmt.Errorf("decode candidate keywords: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return result, nil
}

func scanUsers(rows *sql.Rows) ([]User, error) {
	result := make([]User, 0)
	for rows.Next() {
		var u User
		var topics string
		if err := rows.Scan(
			&u.ID,
			&u.Name,
			&u.Email,
			&topics,
			&u.Frequency,
			&u.PreferredHourStart,
			&u.PreferredHourEnd,
			&u.PausedUntil,
			&u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if err := json.Unmarshal([]byte(topics), &u.TopicsOfInterest); err != nil {
			return nil, fmt.Errorf("decode user topics: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return result, nil
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for v := range a {
		if _, ok := b[v]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = "?"
	}
	return strings.Join(parts, ",")
}
