// Package ranking provides lexical relevance scoring for retrieval.
package ranking

// TermCounts is a term multiset: token to occurrence count.
type TermCounts map[string]int

// Counts builds the multiset of tokens.
func Counts(tokens []string) TermCounts {
	c := make(TermCounts, len(tokens))
	for _, t := range tokens {
		c[t]++
	}
	return c
}

// Total returns the number of occurrences in the multiset.
func (c TermCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Scorer computes a relevance score in [0,1] for a document against a query.
type Scorer interface {
	Name() string
	Score(query, doc TermCounts, queryTotal int) float64
}

// OverlapScorer scores the fraction of query term occurrences matched by the document.
// It ignores document length and terms absent from the query.
type OverlapScorer struct{}

// Name returns the scorer name.
func (OverlapScorer) Name() string { return "overlap" }

// Score returns sum(min(query[t], doc[t])) / queryTotal over shared terms, or 0
// when either side is empty or nothing is shared.
func (OverlapScorer) Score(query, doc TermCounts, queryTotal int) float64 {
	if queryTotal <= 0 || len(query) == 0 || len(doc) == 0 {
		return 0
	}
	overlap := 0
	for term, q := range query {
		d, ok := doc[term]
		if !ok {
			continue
		}
		overlap += min(q, d)
	}
	if overlap == 0 {
		return 0
	}
	return float64(overlap) / float64(queryTotal)
}

// Overlap scores token sequences with OverlapScorer.
func Overlap(queryTokens, docTokens []string) float64 {
	if len(queryTokens) == 0 || len(docTokens) == 0 {
		return 0
	}
	return OverlapScorer{}.Score(Counts(queryTokens), Counts(docTokens), len(queryTokens))
}
