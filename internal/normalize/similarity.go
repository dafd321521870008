// ABOUTME: Pluggable similarity measures for fuzzy entity merging
// ABOUTME: Levenshtein ratio by default, exact match for strict deployments
package normalize

import (
	"fmt"

	"github.com/agnivade/levenshtein"
)

// Similarity scores two canonical names in [0,1], 1 meaning identical
type Similarity interface {
	Score(a, b string) float64
	Name() string
}

// LevenshteinSimilarity is 1 - editDistance/maxRuneLength
type LevenshteinSimilarity struct{}

func (LevenshteinSimilarity) Name() string { return "levenshtein" }

func (LevenshteinSimilarity) Score(a, b string) float64 {
	if a == b && a != "" {
		return 1.0
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 0.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

// ExactSimilarity only matches identical canonical names
type ExactSimilarity struct{}

func (ExactSimilarity) Name() string { return "exact" }

func (ExactSimilarity) Score(a, b string) float64 {
	if a == b && a != "" {
		return 1.0
	}
	return 0.0
}

// ByName returns the similarity measure registered under name
func ByName(name string) (Similarity, error) {
	switch name {
	case "", "levenshtein":
		return LevenshteinSimilarity{}, nil
	case "exact":
		return ExactSimilarity{}, nil
	default:
		return nil, fmt.Errorf("unknown similarity measure %q", name)
	}
}

// Match is the best existing name found for a candidate
type Match struct {
	Key   string
	Score float64
}

// BestMatch returns the highest scoring key in keys at or above threshold.
// Exact canonical equality always matches regardless of threshold.
func BestMatch(sim Similarity, candidate string, keys []string, threshold float64) (Match, bool) {
	var best Match
	found := false
	for _, k := range keys {
		if k == candidate {
			return Match{Key: k, Score: 1.0}, true
		}
		score := sim.Score(candidate, k)
		if score >= threshold && (!found || score > best.Score || (score == best.Score && k < best.Key)) {
			best = Match{Key: k, Score: score}
			found = true
		}
	}
	return best, found
}
