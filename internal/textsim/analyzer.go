package textsim

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"
)

var spaceRe = regexp.MustCompile(`\s+`)

// ContentAnalyzer derives candidate features from raw text: topic
// keywords for retrieval, a reading level, and a dedup hash for
// ingestion.
type ContentAnalyzer struct {
	sim *TextSimilarity
}

func NewContentAnalyzer() *ContentAnalyzer {
	return &ContentAnalyzer{sim: New()}
}

// ExtractTopics returns the topK highest-TF terms of the text. Ties keep
// first-appearance order.
func (a *ContentAnalyzer) ExtractTopics(text string, topK int) []string {
	tokens := a.sim.Tokenize(text)
	tf := a.sim.ComputeTF(tokens)

	terms := make([]string, 0, len(tf))
	seen := make(map[string]struct{}, len(tf))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}

	sort.SliceStable(terms, func(i, j int) bool {
		return tf[terms[i]] > tf[terms[j]]
	})
	if topK > 0 && len(terms) > topK {
		terms = terms[:topK]
	}
	return terms
}

// ReadingLevel estimates difficulty from average word length.
func (a *ContentAnalyzer) ReadingLevel(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return "intermediate"
	}

	total := 0
	for _, w := range words {
		total += len(w)
	}
	avg := float64(total) / float64(len(words))

	switch {
	case avg < 5:
		return "beginner"
	case avg < 6.5:
		return "intermediate"
	default:
		return "advanced"
	}
}

// ContentHash returns a stable dedup hash over the normalized first
// 100 characters of the text.
func (a *ContentAnalyzer) ContentHash(text string) string {
	normalized := spaceRe.ReplaceAllString(strings.TrimSpace(strings.ToLower(text)), " ")
	if len(normalized) > 100 {
		normalized = normalized[:100]
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(normalized))
	return fmt.Sprintf("%x", h.Sum64())
}
