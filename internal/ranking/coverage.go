package ranking

import "fmt"

// CoverageScorer scores the fraction of distinct query terms present in the document.
// Repeats on either side are ignored, so "alpha alpha beta" against a chunk containing
// only alpha scores 0.5.
type CoverageScorer struct{}

// Name returns the scorer name.
func (CoverageScorer) Name() string { return "coverage" }

// Score returns matched distinct terms / distinct query terms, or 0 when either side is empty.
func (CoverageScorer) Score(query, doc TermCounts, _ int) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	matched := 0
	for term := range query {
		if _, ok := doc[term]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}

// ByName returns the scorer registered under name. An empty name selects OverlapScorer.
func ByName(name string) (Scorer, error) {
	switch name {
	case "", OverlapScorer{}.Name():
		return OverlapScorer{}, nil
	case CoverageScorer{}.Name():
		return CoverageScorer{}, nil
	}
	return nil, fmt.Errorf("unknown scorer %q (supported: overlap, coverage)", name)
}
