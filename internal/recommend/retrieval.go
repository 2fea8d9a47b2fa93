package recommend

import (
	"fmt"

	"github.com/stellarlinkco/nudge/internal/store"
	"github.com/stellarlinkco/nudge/internal/textsim"
)

// Retriever is the first pipeline stage: it fetches candidates matching
// the user's explicit interests and activity-mined keywords, widened by
// query expansion, with already-shown candidates filtered out.
type Retriever struct {
	store    store.Store
	expander *textsim.QueryExpander
}

func NewRetriever(s store.Store) *Retriever {
	return &Retriever{store: s, expander: textsim.NewQueryExpander()}
}

// Retrieve returns up to limit unseen candidates for the user, ordered
// by engagement score descending.
func (r *Retriever) Retrieve(user *store.User, limit int) ([]store.Candidate, error) {
	keywords := make([]string, 0, len(user.TopicsOfInterest))
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

	for _, topic := range user.TopicsOfInterest {
		add(topic)
		for _, term := range r.expander.Expand(topic) {
			add(term)
		}
	}
	mined, err := r.store.UserKeywords(user.ID)
	if err != nil {
		return nil, fmt.Errorf("mine activity keywords: %w", err)
	}
	for _, kw := range mined {
		add(kw)
	}

	candidates, err := r.store.CandidatesByKeywords(keywords, limit*2)
	if err != nil {
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}

	shown, err := r.store.ShownCandidates(user.ID)
	if err != nil {
		return nil, fmt.Errorf("load shown candidates: %w", err)
	}

	unseen := make([]store.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := shown[c.ID]; ok {
			continue
		}
		unseen = append(unseen, c)
	}
	if len(unseen) > limit {
		unseen = unseen[:limit]
	}
	return unseen, nil
}
