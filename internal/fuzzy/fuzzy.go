// Package fuzzy scores similarity between table/column name fragments and a
// set of candidate vertex names, used by the schema inferrer's Priority-2
// endpoint resolution.
package fuzzy

import (
	"strings"

	"github.com/agext/levenshtein"
)

// Named thresholds recommended by the spec for the two call sites that
// consult the fuzzy matcher.
const (
	InferenceThreshold       = 0.6
	ResourceMappingThreshold = 0.8
)

// Match pairs a candidate with its score, returned in descending score order.
type Match struct {
	Candidate string
	Score     float64
}

// Matcher scores a fragment against a fixed candidate set. Not safe for
// concurrent use; callers construct one per schema-inference run.
type Matcher struct {
	Candidates []string
	Threshold  float64
	cache      map[string][]Match
}

func NewMatcher(candidates []string, threshold float64) *Matcher {
	return &Matcher{Candidates: candidates, Threshold: threshold, cache: make(map[string][]Match)}
}

// Best returns the candidates scoring at or above the matcher's threshold
// for the given fragment, sorted best-first. Results are cached per fragment
// for the lifetime of the Matcher.
func (m *Matcher) Best(fragment string) []Match {
	if cached, ok := m.cache[fragment]; ok {
		return cached
	}
	var matches []Match
	for _, c := range m.Candidates {
		score := Score(fragment, c)
		if score >= m.Threshold {
			matches = append(matches, Match{Candidate: c, Score: score})
		}
	}
	// stable best-first ordering
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].Score > matches[j-1].Score; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
	m.cache[fragment] = matches
	return matches
}

// Score combines an exact-match signal, a containment-ratio signal, and a
// normalized Levenshtein similarity signal (standing in for the
// Ratcliff/Obershelp ratio the original scoring was based on — no pack
// library implements that algorithm, and agext/levenshtein's normalized
// similarity is the closest ecosystem primitive) and returns the maximum.
func Score(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1.0
	}
	exact := 0.0
	if a == b {
		exact = 1.0
	}
	containment := containmentRatio(a, b)
	lev := levenshteinSimilarity(a, b)
	best := exact
	if containment > best {
		best = containment
	}
	if lev > best {
		best = lev
	}
	return best
}

func containmentRatio(a, b string) float64 {
	shorter, longer := a, b
	if len(a) > len(b) {
		shorter, longer = b, a
	}
	if shorter == "" {
		return 0
	}
	if strings.Contains(longer, shorter) {
		return float64(len(shorter)) / float64(len(longer))
	}
	return 0
}

func levenshteinSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	dist := levenshtein.Distance(a, b, nil)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(dist)/float64(maxLen)
}
