package recommend

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stellarlinkco/nudge/internal/store"
)

var fixedNow = time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "nudge.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestEngine(s store.Store) *Engine {
	e := NewEngine(s)
	e.ranker.now = func() time.Time { return fixedNow }
	return e
}

func TestComputeScoreFullStack(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateUser(store.User{
		ID:               "u1",
		TopicsOfInterest: []string{"kafka", "ml", "streaming"},
	}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	c := store.Candidate{
		ID:              "c1",
		Title:           "t",
		Category:        store.CategoryLearning,
		Keywords:        []string{"kafka", "ml", "streaming"},
		EngagementScore: 5,
		CreatedAt:       fixedNow.Format(time.RFC3339),
	}
	if err := s.AddCandidate(c); err != nil {
		t.Fatalf("AddCandidate: %v", err)
	}

	e := newTestEngine(s)
	user, err := s.UserByID("u1")
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}

	ctx := &UserContext{UserID: "u1", ReceptivityScore: 0.9}
	scored, err := e.ranker.Rank([]store.Candidate{c}, user, ctx)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(scored) != 1 {
		t.Fatalf("expected 1 scored candidate, got %d", len(scored))
	}

	// interest 3/3 -> 0.35, engagement 5/5 -> 0.10, recency 0 days -> 0.10,
	// timing 0.9 -> 0.045. No activity or CF contribution.
	want := 0.35 + 0.10 + 0.10 + 0.045
	if math.Abs(scored[0].Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", scored[0].Score, want)
	}

	types := make(map[string]bool)
	for _, sig := range scored[0].Signals {
		types[sig.Type] = true
	}
	for _, expect := range []string{SignalMatch, SignalTrending, SignalTiming} {
		if !types[expect] {
			t.Errorf("missing %s signal in %v", expect, scored[0].Signals)
		}
	}
}

func TestRecencySkippedOnBadTimestamp(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateUser(store.User{ID: "u1", TopicsOfInterest: []string{"kafka"}}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	c := store.Candidate{
		ID:        "c1",
		Title:     "t",
		Keywords:  []string{"kafka"},
		CreatedAt: "not-a-timestamp",
	}
	if err := s.AddCandidate(c); err != nil {
		t.Fatalf("AddCandidate: %v", err)
	}

	e := newTestEngine(s)
	user, _ := s.UserByID("u1")
	scored, err := e.ranker.Rank([]store.Candidate{c}, user, nil)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}

	// Only the interest component applies: 1/3 match.
	want := 1.0 / 3.0 * 0.35
	if math.Abs(scored[0].Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v (recency must be skipped)", scored[0].Score, want)
	}
	for _, sig := range scored[0].Signals {
		if sig.Type == SignalTrending {
			t.Error("trending signal emitted for unparseable created_at")
		}
	}
}

func TestActivityRelevance(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateUser(store.User{ID: "u1"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.AddActivity(store.Activity{
		UserID:       "u1",
		ActivityType: "search",
		Query:        "Kafka Streaming",
		Timestamp:    fixedNow.Format(time.RFC3339),
	}); err != nil {
		t.Fatalf("AddActivity: %v", err)
	}

	c := store.Candidate{
		ID:       "c1",
		Title:    "t",
		Keywords: []string{"kafka", "streaming", "unrelated"},
	}
	if err := s.AddCandidate(c); err != nil {
		t.Fatalf("AddCandidate: %v", err)
	}

	e := newTestEngine(s)
	user, _ := s.UserByID("u1")
	scored, err := e.ranker.Rank([]store.Candidate{c}, user, nil)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}

	// Two keyword overlaps from query tokens: 2/5 of the activity weight.
	want := 2.0 / 5.0 * 0.25
	if math.Abs(scored[0].Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", scored[0].Score, want)
	}
	found := false
	for _, sig := range scored[0].Signals {
		if sig.Type == SignalSearchHistory {
			found = true
		}
	}
	if !found {
		t.Errorf("expected search_history signal, got %v", scored[0].Signals)
	}
}

func TestDiversityPenalty(t *testing.T) {
	scored := []ScoredCandidate{
		{Candidate: store.Candidate{ID: "a", Category: store.CategoryLearning}, Score: 0.9},
		{Candidate: store.Candidate{ID: "b", Category: store.CategoryLearning}, Score: 0.85},
		{Candidate: store.Candidate{ID: "c", Category: store.CategoryWork}, Score: 0.7},
	}

	got := applyDiversity(scored)

	// b repeats learning: 0.85*0.8 = 0.68, dropping below c.
	if got[0].Candidate.ID != "a" || got[1].Candidate.ID != "c" || got[2].Candidate.ID != "b" {
		t.Errorf("diversity order = [%s %s %s], want [a c b]",
			got[0].Candidate.ID, got[1].Candidate.ID, got[2].Candidate.ID)
	}
	if math.Abs(got[2].Score-0.68) > 1e-9 {
		t.Errorf("penalized score = %v, want 0.68", got[2].Score)
	}
}

func TestCFServiceCachesAndInvalidates(t *testing.T) {
	s := newTestStore(t)
	for _, u := range []store.User{
		{ID: "target", TopicsOfInterest: []string{"kafka"}},
		{ID: "peer", TopicsOfInterest: []string{"kafka"}},
	} {
		if err := s.CreateUser(u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}
	if err := s.AddCandidate(store.Candidate{ID: "c1", Title: "t"}); err != nil {
		t.Fatalf("AddCandidate: %v", err)
	}

	cf := NewCFService(s)
	before := cf.Scores("target")
	if len(before) != 0 {
		t.Fatalf("expected empty CF scores before any feedback, got %v", before)
	}

	if _, err := s.RecordFeedback(store.Feedback{
		UserID: "peer", CandidateID: "c1", Action: store.ActionStarted,
	}); err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}

	// Memoized result still empty until invalidated.
	if got := cf.Scores("target"); len(got) != 0 {
		t.Fatalf("expected memoized empty scores, got %v", got)
	}

	cf.ClearCache("")
	after := cf.Scores("target")
	if len(after) == 0 {
		t.Fatal("expected CF scores after invalidation")
	}
	// Similar-user part normalizes to 1.0, popularity blend adds 0.3.
	if math.Abs(after["c1"]-1.3) > 1e-9 {
		t.Errorf("cf score = %v, want 1.3", after["c1"])
	}
}

func TestRecommendationsFallbackPool(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateUser(store.User{ID: "u1", TopicsOfInterest: []string{"nomatch"}}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.AddCandidate(store.Candidate{
		ID: "c1", Title: "t", Keywords: []string{"kafka"},
		CreatedAt: fixedNow.Format(time.RFC3339),
	}); err != nil {
		t.Fatalf("AddCandidate: %v", err)
	}

	e := newTestEngine(s)
	got, err := e.Recommendations("u1", 5, nil)
	if err != nil {
		t.Fatalf("Recommendations: %v", err)
	}
	if len(got) != 1 || got[0].Candidate.ID != "c1" {
		t.Errorf("fallback pool not used: %v", got)
	}
}

func TestRecommendationsUnknownUser(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddCandidate(store.Candidate{
		ID: "c1", Title: "t", Keywords: []string{"general"},
	}); err != nil {
		t.Fatalf("AddCandidate: %v", err)
	}

	e := newTestEngine(s)
	got, err := e.Recommendations("ghost", 5, nil)
	if err != nil {
		t.Fatalf("Recommendations for unknown user: %v", err)
	}
	if len(got) == 0 {
		t.Error("expected default-profile recommendations for unknown user")
	}
}

func TestProactiveSuggestionFloor(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateUser(store.User{ID: "u1", TopicsOfInterest: []string{"kafka", "ml", "streaming"}}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// Weak candidate: one interest match, stale, no engagement.
	if err := s.AddCandidate(store.Candidate{
		ID: "weak", Title: "weak", Keywords: []string{"kafka"},
		CreatedAt: fixedNow.AddDate(0, 0, -90).Format(time.RFC3339),
	}); err != nil {
		t.Fatalf("AddCandidate: %v", err)
	}

	e := newTestEngine(s)
	got, err := e.ProactiveSuggestion("u1", nil)
	if err != nil {
		t.Fatalf("ProactiveSuggestion: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil below quality floor, got %+v", got)
	}

	// Strong candidate clears the floor.
	if err := s.AddCandidate(store.Candidate{
		ID: "strong", Title: "strong",
		Keywords:        []string{"kafka", "ml", "streaming"},
		EngagementScore: 5,
		CreatedAt:       fixedNow.Format(time.RFC3339),
	}); err != nil {
		t.Fatalf("AddCandidate: %v", err)
	}

	got, err = e.ProactiveSuggestion("u1", &UserContext{UserID: "u1", ReceptivityScore: 0.9})
	if err != nil {
		t.Fatalf("ProactiveSuggestion: %v", err)
	}
	if got == nil || got.Candidate.ID != "strong" {
		t.Fatalf("expected strong suggestion, got %+v", got)
	}
	if got.Score < 0.5 {
		t.Errorf("suggestion score %v below floor", got.Score)
	}
}
