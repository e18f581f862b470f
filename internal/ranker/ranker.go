// Package ranker scores free-text queries against memory entries with
// bag-of-words methods: TF-IDF cosine similarity or plain substring matching.
package ranker

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/milohq/milo-memory/internal/apperr"
	"github.com/milohq/milo-memory/internal/model"
)

// Mode names a ranking strategy.
type Mode string

const (
	// ModeAuto uses TF-IDF whenever it is available.
	ModeAuto Mode = "auto"
	// ModeTFIDF ranks by TF-IDF cosine similarity.
	ModeTFIDF Mode = "tfidf"
	// ModeSubstring ranks by the fraction of query words contained in the entry.
	ModeSubstring Mode = "substring"
)

// Scored is an entry and its similarity to the query.
type Scored struct {
	Entry model.Entry
	Score float64
}

// Ranker orders a corpus by similarity to a query. Entries scoring zero
// (or under the strategy's threshold) are left out; ties keep corpus order.
type Ranker interface {
	Rank(query string, corpus []model.Entry, limit int) ([]Scored, error)
	Mode() Mode
}

// New returns the ranker for mode. The choice is made once, by the caller,
// and never revisited per query.
func New(mode string) (Ranker, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(mode))) {
	case "", ModeAuto, ModeTFIDF:
		return NewTFIDF(), nil
	case ModeSubstring:
		return NewSubstring(), nil
	default:
		return nil, apperr.Validation("ranker", "unknown mode %q (want auto, tfidf, or substring)", mode)
	}
}

// ToResults converts ranked entries into search results tagged "db".
func ToResults(scored []Scored) []model.SearchResult {
	out := make([]model.SearchResult, len(scored))
	for i, s := range scored {
		out[i] = model.SearchResult{
			ID:         s.Entry.ID,
			Content:    s.Entry.Content,
			Source:     model.SourceDB,
			EntryType:  s.Entry.EntryType,
			Importance: s.Entry.Importance,
			Score:      s.Score,
		}
	}
	return out
}

// FormatScore renders a score with two decimals.
func FormatScore(score float64) string {
	return fmt.Sprintf("%.2f", score)
}

func checkQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return apperr.Validation("rank", "query is required")
	}
	return nil
}

// sortAndTruncate orders by score descending, keeping corpus order on ties.
func sortAndTruncate(scored []Scored, limit int) []Scored {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// cosineSimilarity computes cosine similarity between two sparse vectors.
func cosineSimilarity(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot, normA, normB float64
	for term, wa := range a {
		dot += wa * b[term]
		normA += wa * wa
	}
	for _, wb := range b {
		normB += wb * wb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
