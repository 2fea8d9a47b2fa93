// Package textsim implements TF-IDF text similarity used by candidate
// retrieval and ranking. It provides lexical-semantic matching without
// external model dependencies; the Index interface boundary keeps it
// swappable for embedding-based backends later.
package textsim

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var wordRe = regexp.MustCompile(`\b[a-z][a-z0-9]*\b`)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"from": {}, "as": {}, "is": {}, "was": {}, "are": {}, "were": {},
	"been": {}, "be": {}, "have": {}, "has": {}, "had": {}, "do": {},
	"does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "must": {}, "shall": {},
	"can": {}, "this": {}, "that": {}, "these": {}, "those": {}, "i": {},
	"you": {}, "he": {}, "she": {}, "it": {}, "we": {}, "they": {},
	"what": {}, "which": {}, "who": {}, "whom": {}, "whose": {},
	"where": {}, "when": {}, "why": {}, "how": {}, "all": {}, "each": {},
	"every": {}, "both": {}, "few": {}, "more": {}, "most": {},
	"other": {}, "some": {}, "such": {}, "no": {}, "not": {}, "only": {},
	"own": {}, "same": {}, "so": {}, "than": {}, "too": {}, "very": {},
}

// Document pairs an identifier with the text it is indexed and scored by.
type Document struct {
	ID   string
	Text string
}

// Match is a scored search result.
type Match struct {
	ID    string
	Score float64
}

// TextSimilarity scores documents against each other using TF-IDF
// vectors and cosine similarity. BuildIndex must run before IDF-weighted
// scoring is meaningful; an empty index degrades gracefully.
type TextSimilarity struct {
	mu      sync.RWMutex
	docFreq map[string]int
	numDocs int
}

func New() *TextSimilarity {
	return &TextSimilarity{docFreq: make(map[string]int)}
}

// Tokenize lowercases the text, extracts letter-led word tokens and
// drops stopwords and tokens shorter than three characters.
func (ts *TextSimilarity) Tokenize(text string) []string {
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// ComputeTF returns augmented term frequencies, normalized against the
// most frequent token so long documents are not favored:
//
//	tf(t) = 0.5 + 0.5 * (count(t) / maxCount)
func (ts *TextSimilarity) ComputeTF(tokens []string) map[string]float64 {
	if len(tokens) == 0 {
		return map[string]float64{}
	}

	counts := make(map[string]int, len(tokens))
	maxCount := 0
	for _, t := range tokens {
		counts[t]++
		if counts[t] > maxCount {
			maxCount = counts[t]
		}
	}

	tf := make(map[string]float64, len(counts))
	for term, count := range counts {
		tf[term] = 0.5 + 0.5*(float64(count)/float64(maxCount))
	}
	return tf
}

// ComputeIDF returns log(N / (1 + df(term))). An empty index is treated
// as a single-document corpus so the result stays finite.
func (ts *TextSimilarity) ComputeIDF(term string) float64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.idfLocked(term)
}

func (ts *TextSimilarity) idfLocked(term string) float64 {
	n := ts.numDocs
	if n == 0 {
		n = 1
	}
	df := ts.docFreq[term]
	return math.Log(float64(n) / float64(1+df))
}

// BuildIndex replaces the IDF index with document frequencies computed
// over the given corpus. Each document counts a term at most once.
func (ts *TextSimilarity) BuildIndex(documents []string) {
	docFreq := make(map[string]int)
	for _, doc := range documents {
		seen := make(map[string]struct{})
		for _, token := range ts.Tokenize(doc) {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			docFreq[token]++
		}
	}

	ts.mu.Lock()
	ts.docFreq = docFreq
	ts.numDocs = len(documents)
	ts.mu.Unlock()
}

// Vector computes the TF-IDF vector of a text against the current index.
func (ts *TextSimilarity) Vector(text string) map[string]float64 {
	tf := ts.ComputeTF(ts.Tokenize(text))

	ts.mu.RLock()
	defer ts.mu.RUnlock()

	vec := make(map[string]float64, len(tf))
	for term, tfScore := range tf {
		vec[term] = tfScore * ts.idfLocked(term)
	}
	return vec
}

// CosineSimilarity computes the cosine of two sparse vectors. The dot
// product runs over shared terms; magnitudes cover all terms of each
// vector.
func CosineSimilarity(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	dot := 0.0
	shared := false
	for term, av := range a {
		if bv, ok := b[term]; ok {
			dot += av * bv
			shared = true
		}
	}
	if !shared {
		return 0
	}

	magA := 0.0
	for _, v := range a {
		magA += v * v
	}
	magB := 0.0
	for _, v := range b {
		magB += v * v
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Similarity scores two texts in [0, 1].
func (ts *TextSimilarity) Similarity(text1, text2 string) float64 {
	return CosineSimilarity(ts.Vector(text1), ts.Vector(text2))
}

// FindSimilar scores every document against the query and returns the
// topK strictly-positive matches sorted by score descending. Equal
// scores keep input order.
func (ts *TextSimilarity) FindSimilar(query string, documents []Document, topK int) []Match {
	queryVec := ts.Vector(query)

	matches := make([]Match, 0, len(documents))
	for _, doc := range documents {
		score := CosineSimilarity(queryVec, ts.Vector(doc.Text))
		if score > 0 {
			matches = append(matches, Match{ID: doc.ID, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
