package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreExactMatch(t *testing.T) {
	assert.Equal(t, 1.0, Score("user", "user"))
}

func TestScoreContainment(t *testing.T) {
	s := Score("user", "users")
	assert.Greater(t, s, 0.5)
}

func TestMatcherBestOrdering(t *testing.T) {
	m := NewMatcher([]string{"user", "product", "users"}, InferenceThreshold)
	best := m.Best("user")
	if assert.NotEmpty(t, best) {
		assert.Equal(t, "user", best[0].Candidate)
	}
}

func TestMatcherCachesResults(t *testing.T) {
	m := NewMatcher([]string{"user"}, InferenceThreshold)
	first := m.Best("usr")
	second := m.Best("usr")
	assert.Equal(t, first, second)
}
