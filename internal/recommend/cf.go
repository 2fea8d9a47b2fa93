package recommend

import (
	"log"
	"sync"

	"github.com/stellarlinkco/nudge/internal/store"
)

const (
	cfSimilarLimit  = 50
	cfPopularLimit  = 20
	popularityBlend = 0.3
)

// CFService computes collaborative filtering scores from user-item
// interactions: candidates engaged by topic-similar users, blended with
// a popularity baseline for cold start. Results are memoized per user
// until invalidated.
type CFService struct {
	store store.Store

	mu    sync.Mutex
	cache map[string]map[string]float64
}

func NewCFService(s store.Store) *CFService {
	return &CFService{
		store: s,
		cache: make(map[string]map[string]float64),
	}
}

// Scores returns candidate-id to CF score in [0, 1+popularityBlend],
// memoized per user. Errors from either source degrade to an empty
// contribution rather than failing the ranking pass.
func (c *CFService) Scores(userID string) map[string]float64 {
	c.mu.Lock()
	if cached, ok := c.cache[userID]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	scores := make(map[string]float64)

	engaged, err := c.store.CandidatesEngagedBySimilarUsers(userID, cfSimilarLimit)
	if err != nil {
		log.Printf("[recommend] cf similar-user lookup failed for %s: %v", userID, err)
	}
	if len(engaged) > 0 {
		maxScore := 0.0
		for _, cs := range engaged {
			if cs.Score > maxScore {
				maxScore = cs.Score
			}
		}
		for _, cs := range engaged {
			if maxScore > 0 {
				scores[cs.CandidateID] = cs.Score / maxScore
			}
		}
	}

	popular, err := c.store.PopularCandidates(cfPopularLimit)
	if err != nil {
		log.Printf("[recommend] cf popularity lookup failed: %v", err)
	}
	if len(popular) > 0 {
		maxPop := 0
		for _, cc := range popular {
			if cc.Count > maxPop {
				maxPop = cc.Count
			}
		}
		for _, cc := range popular {
			if maxPop > 0 {
				scores[cc.CandidateID] += float64(cc.Count) / float64(maxPop) * popularityBlend
			}
		}
	}

	c.mu.Lock()
	c.cache[userID] = scores
	c.mu.Unlock()
	return scores
}

// ClearCache drops the memoized scores for one user, or for everyone
// when userID is empty. Feedback from any user can shift every other
// user's similar-user scores, so the feedback hook clears all.
func (c *CFService) ClearCache(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if userID == "" {
		c.cache = make(map[string]map[string]float64)
		return
	}
	delete(c.cache, userID)
}
