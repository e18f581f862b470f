package ranker

import (
	"strings"

	"github.com/milohq/milo-memory/internal/model"
)

// SubstringRanker scores an entry by the fraction of whitespace-separated
// query words that occur in its content, case-insensitively.
type SubstringRanker struct{}

// NewSubstring returns a SubstringRanker.
func NewSubstring() *SubstringRanker { return &SubstringRanker{} }

// Mode implements Ranker.
func (*SubstringRanker) Mode() Mode { return ModeSubstring }

// Rank implements Ranker.
func (*SubstringRanker) Rank(query string, corpus []model.Entry, limit int) ([]Scored, error) {
	if err := checkQuery(query); err != nil {
		return nil, err
	}
	words := strings.Fields(strings.ToLower(query))

	var scored []Scored
	for _, e := range corpus {
		content := strings.ToLower(e.Content)
		matches := 0
		for _, w := range words {
			if strings.Contains(content, w) {
				matches++
			}
		}
		if matches > 0 {
			scored = append(scored, Scored{Entry: e, Score: float64(matches) / float64(len(words))})
		}
	}
	return sortAndTruncate(scored, limit), nil
}
