package store

import (
	"fmt"
	"time"
)

// Seed populates an empty database with a small sample pool and demo
// users so the pipeline can be exercised without external ingestion.
// It is a no-op when candidates already exist.
func (s *SQLite) Seed() (int, error) {
	existing, err := s.AllCandidates()
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	age := func(days int) string {
		return now.AddDate(0, 0, -days).Format(time.RFC3339)
	}

	candidates := []Candidate{
		{
			ID:              "cand-001",
			Title:           "Exactly-once semantics in Kafka consumer groups",
			Summary:         "How idempotent producers and transactional offsets combine to give exactly-once processing across partition rebalances.",
			Category:        CategoryLearning,
			Keywords:        []string{"kafka", "streaming", "distributed", "messaging"},
			Source:          "engineering-blog",
			EngagementScore: 2.5,
			CreatedAt:       age(2),
			ContentType:     "article",
			Difficulty:      "advanced",
			Priority:        PriorityMedium,
		},
		{
			ID:              "cand-002",
			Title:           "Postgres query planning for large joins",
			Summary:         "Reading EXPLAIN output, why the planner picks hash joins, and when to reach for partial indexes.",
			Category:        CategoryLearning,
			Keywords:        []string{"database", "postgres", "sql", "performance"},
			Source:          "engineering-blog",
			EngagementScore: 1.8,
			CreatedAt:       age(5),
			ContentType:     "article",
			Difficulty:      "intermediate",
			Priority:        PriorityMedium,
		},
		{
			ID:              "cand-003",
			Title:           "Kubernetes pod eviction under memory pressure",
			Summary:         "What the kubelet does when a node runs out of memory and how QoS classes decide which pods die first.",
			Category:        CategoryWork,
			Keywords:        []string{"kubernetes", "k8s", "containers", "operations"},
			Source:          "platform-team",
			EngagementScore: 3.1,
			CreatedAt:       age(1),
			ContentType:     "article",
			Difficulty:      "intermediate",
			Priority:        PriorityHigh,
		},
		{
			ID:              "cand-004",
			Title:           "An introduction to transformer embeddings",
			Summary:         "From one-hot vectors to contextual embeddings, with a worked example of cosine similarity over sentence vectors.",
			Category:        CategoryLearning,
			Keywords:        []string{"ml", "machine learning", "embeddings", "nlp"},
			Source:          "research-digest",
			EngagementScore: 4.2,
			CreatedAt:       age(3),
			ContentType:     "tutorial",
			Difficulty:      "beginner",
			Priority:        PriorityMedium,
		},
		{
			ID:              "cand-005",
			Title:           "Fearless concurrency with Rust async tasks",
			Summary:         "Ownership rules applied to async code, pinning, and why Send bounds show up in executor signatures.",
			Category:        CategoryLearning,
			Keywords:        []string{"rust", "async", "concurrency", "systems"},
			Source:          "community",
			EngagementScore: 1.2,
			CreatedAt:       age(10),
			ContentType:     "tutorial",
			Difficulty:      "advanced",
			Priority:        PriorityLow,
		},
		{
			ID:              "cand-006",
			Title:           "Designing REST APIs that survive versioning",
			Summary:         "Additive changes, tolerant readers, and when to break down and mint a v2 endpoint.",
			Category:        CategoryWork,
			Keywords:        []string{"api", "rest", "design", "http"},
			Source:          "engineering-blog",
			EngagementScore: 2.0,
			CreatedAt:       age(7),
			ContentType:     "article",
			Difficulty:      "intermediate",
			Priority:        PriorityMedium,
		},
		{
			ID:              "cand-007",
			Title:           "Property-based testing in practice",
			Summary:         "Generators, shrinking, and three invariants worth encoding for any parser you maintain.",
			Category:        CategoryLearning,
			Keywords:        []string{"test", "testing", "quality", "tools"},
			Source:          "community",
			EngagementScore: 1.5,
			CreatedAt:       age(14),
			ContentType:     "article",
			Difficulty:      "intermediate",
			Priority:        PriorityLow,
		},
		{
			ID:              "cand-008",
			Title:           "Threat modeling a message queue deployment",
			Summary:         "Attack surface of a broker cluster, from unauthenticated admin APIs to replayed messages.",
			Category:        CategoryWork,
			Keywords:        []string{"security", "kafka", "operations", "audit"},
			Source:          "security-team",
			EngagementScore: 0.9,
			CreatedAt:       age(20),
			ContentType:     "article",
			Difficulty:      "advanced",
			Priority:        PriorityHigh,
		},
		{
			ID:              "cand-009",
			Title:           "Five-minute desk stretches for long coding sessions",
			Summary:         "Short routines targeting wrists, neck and lower back, no equipment needed.",
			Category:        CategoryHealth,
			Keywords:        []string{"health", "ergonomics", "habits"},
			Source:          "wellness-digest",
			EngagementScore: 0.6,
			CreatedAt:       age(4),
			ContentType:     "article",
			Difficulty:      "beginner",
			Priority:        PriorityLow,
		},
		{
			ID:              "cand-010",
			Title:           "Timeboxing deep work around meeting-heavy days",
			Summary:         "Calendar defense tactics and how to batch interrupts without going dark on your team.",
			Category:        CategoryProductivity,
			Keywords:        []string{"productivity", "focus", "habits", "calendar"},
			Source:          "community",
			EngagementScore: 1.1,
			CreatedAt:       age(6),
			ContentType:     "article",
			Difficulty:      "beginner",
			Priority:        PriorityMedium,
		},
	}

	for _, c := range candidates {
		if err := s.AddCandidate(c); err != nil {
			return 0, fmt.Errorf("seed candidate %s: %w", c.ID, err)
		}
	}

	users := []User{
		{
			ID:                 "demo-user",
			Name:               "Demo User",
			Email:              "demo@example.com",
			TopicsOfInterest:   []string{"kafka", "distributed", "ml"},
			Frequency:          FrequencySometimes,
			PreferredHourStart: 9,
			PreferredHourEnd:   18,
		},
		{
			ID:                 "demo-peer",
			Name:               "Demo Peer",
			Email:              "peer@example.com",
			TopicsOfInterest:   []string{"kafka", "kubernetes", "security"},
			Frequency:          FrequencyOften,
			PreferredHourStart: 8,
			PreferredHourEnd:   20,
		},
	}
	for _, u := range users {
		if err := s.CreateUser(u); err != nil {
			return 0, fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}

	return len(candidates), nil
}
