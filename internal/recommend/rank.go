package recommend

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stellarlinkco/nudge/internal/store"
)

// Score weights. They sum to 1.0; the timing component only applies
// when a user context is present.
const (
	weightInterest   = 0.35
	weightActivity   = 0.25
	weightCF         = 0.15
	weightEngagement = 0.10
	weightRecency    = 0.10
	weightTiming     = 0.05
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseTimestamp(value string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Ranker is the second pipeline stage: it scores retrieved candidates
// with a weighted signal mix and applies a category diversity penalty.
type Ranker struct {
	store store.Store
	cf    *CFService
	now   func() time.Time
}

func NewRanker(s store.Store, cf *CFService) *Ranker {
	return &Ranker{store: s, cf: cf, now: time.Now}
}

// Rank scores candidates for the user, sorts by score descending, then
// applies the diversity pass and re-sorts. ctx may be nil.
func (r *Ranker) Rank(candidates []store.Candidate, user *store.User, ctx *UserContext) ([]ScoredCandidate, error) {
	activities, err := r.store.RecentActivity(user.ID, 20)
	if err != nil {
		return nil, fmt.Errorf("load recent activity: %w", err)
	}
	cfScores := r.cf.Scores(user.ID)

	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		score, signals := r.computeScore(c, user, activities, ctx, cfScores)
		scored = append(scored, ScoredCandidate{Candidate: c, Score: score, Signals: signals})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return applyDiversity(scored), nil
}

func (r *Ranker) computeScore(
	c store.Candidate,
	user *store.User,
	activities []store.Activity,
	ctx *UserContext,
	cfScores map[string]float64,
) (float64, []Signal) {
	signals := make([]Signal, 0, 4)
	total := 0.0

	// Interest match.
	if matches := c.MatchesInterests(user.TopicsOfInterest); matches > 0 {
		s := min1(float64(matches)/3) * weightInterest
		total += s
		signals = append(signals, Signal{
			Type:        SignalMatch,
			Description: fmt.Sprintf("Matches %d of your interests", matches),
			Weight:      s,
		})
	}

	// Activity relevance over the last 10 activities, counting distinct
	// keyword overlaps including free-text query tokens.
	recent := activities
	if len(recent) > 10 {
		recent = recent[:10]
	}
	activityKeywords := make(map[string]struct{})
	for _, a := range recent {
		for _, kw := range a.Keywords {
			activityKeywords[kw] = struct{}{}
		}
		if a.Query != "" {
			for _, tok := range splitLowerFields(a.Query) {
				activityKeywords[tok] = struct{}{}
			}
		}
	}
	activityMatches := 0
	seenKw := make(map[string]struct{})
	for _, kw := range c.Keywords {
		if _, dup := seenKw[kw]; dup {
			continue
		}
		seenKw[kw] = struct{}{}
		if _, ok := activityKeywords[kw]; ok {
			activityMatches++
		}
	}
	if activityMatches > 0 {
		s := min1(float64(activityMatches)/5) * weightActivity
		total += s
		if len(activities) > 0 {
			switch activities[0].ActivityType {
			case "article_read":
				signals = append(signals, Signal{
					Type:        SignalReadingHistory,
					Description: "Related to articles you've been reading",
					Weight:      s,
				})
			case "search":
				signals = append(signals, Signal{
					Type:        SignalSearchHistory,
					Description: "Related to your recent searches",
					Weight:      s,
				})
			}
		}
	}

	// Collaborative filtering.
	if cfScore, ok := cfScores[c.ID]; ok {
		s := cfScore * weightCF
		total += s
		if s > 0.05 {
			signals = append(signals, Signal{
				Type:        SignalSimilarUsers,
				Description: "Liked by users with similar interests",
				Weight:      s,
			})
		}
	}

	// Engagement.
	total += min1(c.EngagementScore/5) * weightEngagement

	// Recency; skipped entirely when created_at does not parse.
	if created, ok := parseTimestamp(c.CreatedAt); ok {
		days := r.now().Sub(created).Hours() / 24
		s := max0(1-days/30) * weightRecency
		total += s
		if days < 3 {
			signals = append(signals, Signal{
				Type:        SignalTrending,
				Description: "Fresh content from the last few days",
				Weight:      s,
			})
		}
	}

	// Timing.
	if ctx != nil {
		s := ctx.ReceptivityScore * weightTiming
		total += s
		if ctx.ReceptivityScore > 0.7 {
			signals = append(signals, Signal{
				Type:        SignalTiming,
				Description: "Optimal time based on your patterns",
				Weight:      s,
			})
		}
	}

	return min1(total), signals
}

// applyDiversity walks the sorted list and multiplies the score of every
// candidate repeating an already-seen category by 0.8, then re-sorts.
func applyDiversity(scored []ScoredCandidate) []ScoredCandidate {
	seen := make(map[string]struct{})
	for i := range scored {
		category := scored[i].Candidate.Category
		if _, ok := seen[category]; ok {
			scored[i].Score *= 0.8
		}
		seen[category] = struct{}{}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

func splitLowerFields(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
