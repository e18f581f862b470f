package ranker

import (
	"math"
	"regexp"
	"strings"

	"github.com/milohq/milo-memory/internal/model"
)

// MinTFIDFScore is the similarity an entry must exceed to be returned.
const MinTFIDFScore = 0.05

// tokenRe matches runs of word characters; runs shorter than two runes are dropped.
var tokenRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// TfidfRanker fits a TF-IDF vocabulary over the corpus plus the query on
// every call and ranks entries by cosine similarity to the query vector.
//
// Weights use raw term counts and smoothed inverse document frequency,
// idf(t) = ln((1+n)/(1+df(t))) + 1, with English stop words removed.
type TfidfRanker struct {
	stopWords map[string]struct{}
}

// NewTFIDF returns a TfidfRanker with the English stop word list.
func NewTFIDF() *TfidfRanker {
	return &TfidfRanker{stopWords: englishStopWords}
}

// Mode implements Ranker.
func (*TfidfRanker) Mode() Mode { return ModeTFIDF }

// Rank implements Ranker.
func (r *TfidfRanker) Rank(query string, corpus []model.Entry, limit int) ([]Scored, error) {
	if err := checkQuery(query); err != nil {
		return nil, err
	}
	if len(corpus) == 0 {
		return nil, nil
	}

	docs := make([][]string, 0, len(corpus)+1)
	for _, e := range corpus {
		docs = append(docs, r.tokenize(e.Content))
	}
	docs = append(docs, r.tokenize(query))

	idf := inverseDocFrequency(docs)
	queryVec := weigh(docs[len(docs)-1], idf)
	if len(queryVec) == 0 {
		return nil, nil
	}

	var scored []Scored
	for i, e := range corpus {
		score := cosineSimilarity(queryVec, weigh(docs[i], idf))
		if score > MinTFIDFScore {
			scored = append(scored, Scored{Entry: e, Score: score})
		}
	}
	return sortAndTruncate(scored, limit), nil
}

func (r *TfidfRanker) tokenize(text string) []string {
	var tokens []string
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		if len([]rune(tok)) < 2 {
			continue
		}
		if _, stop := r.stopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func inverseDocFrequency(docs [][]string) map[string]float64 {
	df := map[string]int{}
	for _, doc := range docs {
		seen := map[string]bool{}
		for _, tok := range doc {
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}
	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		idf[term] = math.Log((1+n)/(1+float64(count))) + 1
	}
	return idf
}

// weigh returns the tf*idf vector of doc. Cosine similarity makes an explicit
// L2 normalisation unnecessary.
func weigh(doc []string, idf map[string]float64) map[string]float64 {
	vec := make(map[string]float64, len(doc))
	for _, tok := range doc {
		vec[tok] += idf[tok]
	}
	return vec
}
