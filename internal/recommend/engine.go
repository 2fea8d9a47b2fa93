package recommend

import (
	"fmt"
	"log"

	"github.com/stellarlinkco/nudge/internal/store"
)

// proactiveFloor is the minimum score a suggestion must clear before it
// is worth interrupting the user for.
const proactiveFloor = 0.5

// Engine runs the full pipeline: retrieval, ranking, top-K selection.
type Engine struct {
	store     store.Store
	retriever *Retriever
	ranker    *Ranker
	cf        *CFService
}

func NewEngine(s store.Store) *Engine {
	cf := NewCFService(s)
	return &Engine{
		store:     s,
		retriever: NewRetriever(s),
		ranker:    NewRanker(s, cf),
		cf:        cf,
	}
}

// CF exposes the collaborative filtering service so callers can wire
// cache invalidation to feedback events.
func (e *Engine) CF() *CFService {
	return e.cf
}

// Recommendations returns up to limit scored candidates for the user.
// Unknown users are scored against a default "general" interest profile.
// When keyword retrieval finds nothing, the pipeline falls back to
// ranking a slice of the whole pool.
func (e *Engine) Recommendations(userID string, limit int, ctx *UserContext) ([]ScoredCandidate, error) {
	if limit <= 0 {
		limit = 5
	}

	user, err := e.store.UserByID(userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		user = &store.User{
			ID:               userID,
			Name:             "Anonymous",
			TopicsOfInterest: []string{"general"},
		}
	}

	candidates, err := e.retriever.Retrieve(user, limit*5)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		all, err := e.store.AllCandidates()
		if err != nil {
			return nil, fmt.Errorf("fallback pool: %w", err)
		}
		if len(all) > limit*3 {
			all = all[:limit*3]
		}
		candidates = all
		log.Printf("[recommend] no keyword matches for %s, ranking %d fallback candidates", userID, len(candidates))
	}

	scored, err := e.ranker.Rank(candidates, user, ctx)
	if err != nil {
		return nil, err
	}
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// ProactiveSuggestion returns the single best candidate for unprompted
// outreach, or nil when nothing clears the quality floor.
func (e *Engine) ProactiveSuggestion(userID string, ctx *UserContext) (*ScoredCandidate, error) {
	scored, err := e.Recommendations(userID, 1, ctx)
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return nil, nil
	}
	top := scored[0]
	if top.Score < proactiveFloor {
		return nil, nil
	}
	return &top, nil
}
