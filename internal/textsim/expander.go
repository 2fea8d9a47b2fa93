package textsim

import "strings"

// expansions maps a query term to domain-related terms folded into
// retrieval. Kept small and hand-curated; recall matters more than
// precision because the ranking stage re-scores everything.
var expansions = map[string][]string{
	"kafka":       {"streaming", "messaging", "event-sourcing", "pub-sub", "queue"},
	"distributed": {"distributed-systems", "microservices", "scalability"},
	"database":    {"sql", "nosql", "storage", "persistence", "data"},
	"ml":          {"machine-learning", "ai", "deep-learning", "neural-network"},
	"kubernetes":  {"k8s", "container", "docker", "orchestration", "devops"},
	"rust":        {"systems-programming", "memory-safety", "performance"},
	"async":       {"concurrency", "parallel", "threading", "non-blocking"},
	"api":         {"rest", "graphql", "endpoint", "http", "microservice"},
	"test":        {"testing", "unit-test", "integration", "tdd", "quality"},
	"security":    {"auth", "authentication", "authorization", "encryption"},
}

// QueryExpander widens queries with related domain terms before retrieval.
type QueryExpander struct{}

func NewQueryExpander() *QueryExpander {
	return &QueryExpander{}
}

// Expand returns the deduplicated expansion terms of every known word
// in the query, in first-seen order. The original query words are not
// included.
func (e *QueryExpander) Expand(query string) []string {
	out := make([]string, 0)
	seen := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(query)) {
		for _, term := range expansions[word] {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			out = append(out, term)
		}
	}
	return out
}
