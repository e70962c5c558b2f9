package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJaro(t *testing.T) {
	s := NewScorer()

	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"identical", "abc123", "abc123", 1.0},
		{"classic transposition", "martha", "marhta", 0.9444},
		{"empty left", "", "abc", 0.0},
		{"no overlap", "abc", "xyz", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, s.Jaro(tt.a, tt.b), 0.001)
		})
	}
}

func TestJaroWinkler(t *testing.T) {
	s := NewScorer()

	assert.InDelta(t, 0.9611, s.JaroWinkler("martha", "marhta"), 0.001)
	assert.Equal(t, 1.0, s.JaroWinkler("same", "same"))

	// Common prefix boosts the score over plain Jaro.
	assert.Greater(t, s.JaroWinkler("brakepad", "brakepud"), s.Jaro("brakepad", "brakepud"))
}

func TestLevenshtein(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 3, s.LevenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 0, s.LevenshteinDistance("abc", "abc"))
	assert.Equal(t, 5, s.LevenshteinDistance("", "12345"))
	assert.InDelta(t, 1.0-3.0/7.0, s.Levenshtein("kitten", "sitting"), 0.0001)
}

func TestNameSimilaritySymmetric(t *testing.T) {
	s := NewScorer()

	pairs := [][2]string{
		{"Oil Filter", "Oil Fitler"},
		{"Brake Pad Front", "Front Brake Pad"},
		{"Spark Plug", "Alternator"},
		{"", "Gasket"},
	}

	for _, p := range pairs {
		assert.Equal(t, s.NameSimilarity(p[0], p[1]), s.NameSimilarity(p[1], p[0]), "pair %v", p)
	}
}
