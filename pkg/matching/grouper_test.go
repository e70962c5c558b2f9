package matching

import (
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/thistle/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func makePart(id int64, sku, name string, partNumbers ...string) models.Part {
	p := models.Part{
		ID:       id,
		SKU:      sku,
		Name:     name,
		IsActive: true,
	}
	for _, pn := range partNumbers {
		p.PartNumbers = append(p.PartNumbers, models.PartNumber{PartID: id, NumberType: "oem", Value: pn})
	}
	return p
}

func groupIDSets(groups []models.DuplicateGroup) [][]int64 {
	sets := make([][]int64, 0, len(groups))
	for _, g := range groups {
		sets = append(sets, g.MemberIDs())
	}
	return sets
}

func TestGroupDuplicatesExactSKU(t *testing.T) {
	grouper := NewGrouper(0.85, testLogger())

	parts := []models.Part{
		makePart(1, "ABC-123", "Oil Filter"),
		makePart(2, "abc123", "Cartridge"),
		makePart(3, "XYZ-999", "Alternator"),
	}

	groups := grouper.GroupDuplicates(parts, 0.65, true, StrategyBruteForce)

	require.Len(t, groups, 1)
	assert.Equal(t, "grp-1", groups[0].GroupID)
	assert.Equal(t, []int64{1, 2}, groups[0].MemberIDs())
	assert.InDelta(t, 0.9, groups[0].Score, 0.0001)
	assert.Contains(t, groups[0].Reasons, ReasonExactSKU)
}

func TestGroupDuplicatesSharedPartNumber(t *testing.T) {
	grouper := NewGrouper(0.85, testLogger())

	parts := []models.Part{
		makePart(10, "SKU-A", "Wiper Blade", "WB-2241"),
		makePart(20, "SKU-B", "Windshield Wiper", "wb2241", "ALT-1"),
		makePart(30, "SKU-C", "Radiator"),
	}

	groups := grouper.GroupDuplicates(parts, 0.65, true, StrategyBucketed)

	require.Len(t, groups, 1)
	assert.Equal(t, []int64{10, 20}, groups[0].MemberIDs())
	assert.Contains(t, groups[0].Reasons, ReasonSharedPartNumber)
}

func TestGroupDuplicatesScoreSymmetry(t *testing.T) {
	scorer := NewPairScorer(0.85)

	a := newCandidate(makePart(1, "ABC-123", "Oil Filter Premium", "OF-100"))
	b := newCandidate(makePart(2, "abc123", "Oil Filter Standard", "of100"))

	ab := scorer.Score(a, b)
	ba := scorer.Score(b, a)

	assert.Equal(t, ab.Score, ba.Score)
	assert.ElementsMatch(t, ab.Reasons, ba.Reasons)
}

func TestScoreParts(t *testing.T) {
	scorer := NewPairScorer(0.85)

	score := scorer.ScoreParts(
		makePart(1, "ABC-123", "Oil Filter"),
		makePart(2, "abc123", "Cartridge"),
	)

	assert.InDelta(t, 0.9, score.Score, 0.0001)
	assert.Equal(t, []string{ReasonExactSKU}, score.Reasons)
}

func TestGroupDuplicatesTransitiveCluster(t *testing.T) {
	grouper := NewGrouper(0.85, testLogger())

	// 1 and 2 share a SKU, 2 and 3 share a part number, 1 and 3 share nothing.
	parts := []models.Part{
		makePart(1, "ABC-123", "Oil Filter"),
		makePart(2, "abc123", "Engine Filter", "ZZZ-777"),
		makePart(3, "OTHER-1", "Spin-On Cartridge", "zzz777"),
	}

	groups := grouper.GroupDuplicates(parts, 0.65, true, StrategyBruteForce)

	require.Len(t, groups, 1)
	assert.Equal(t, []int64{1, 2, 3}, groups[0].MemberIDs())
	assert.Contains(t, groups[0].Reasons, ReasonTransitiveCluster)
}

func TestGroupDuplicatesExcludeMerged(t *testing.T) {
	grouper := NewGrouper(0.85, testLogger())

	merged := makePart(2, "abc123", "Oil Filter")
	merged.IsActive = false

	parts := []models.Part{
		makePart(1, "ABC-123", "Oil Filter"),
		merged,
	}

	assert.Empty(t, grouper.GroupDuplicates(parts, 0.65, true, StrategyBucketed))

	groups := grouper.GroupDuplicates(parts, 0.65, false, StrategyBucketed)
	require.Len(t, groups, 1)
	assert.Equal(t, []int64{1, 2}, groups[0].MemberIDs())
}

func TestGroupDuplicatesStrategyEquivalence(t *testing.T) {
	grouper := NewGrouper(0.85, testLogger())

	parts := []models.Part{
		makePart(1, "ABC-123", "Oil Filter", "OF-100"),
		makePart(2, "abc123", "Oil Fitler", "XJ-55"),
		makePart(3, "DEF-456", "Brake Pad Front", "BP-200"),
		makePart(4, "def456", "Brake Pad Front Set", "bp200"),
		makePart(5, "GHI-789", "Alternator"),
		makePart(6, "JKL-012", "Oil Filter Premium", "of100"),
		makePart(7, "", "Spark Plug"),
		makePart(8, "MNO-3", "Spark Plug Set NGK"),
	}

	for _, minScore := range []float64{0, 0.2, 0.5, 0.65, 0.9} {
		v1 := grouper.GroupDuplicates(parts, minScore, true, StrategyBruteForce)
		v2 := grouper.GroupDuplicates(parts, minScore, true, StrategyBucketed)

		assert.Equal(t, groupIDSets(v1), groupIDSets(v2), "minScore=%v", minScore)
		for i := range v1 {
			assert.InDelta(t, v1[i].Score, v2[i].Score, 0.0001)
			assert.Equal(t, v1[i].Reasons, v2[i].Reasons)
		}
	}
}

func TestGroupDuplicatesZeroMinScore(t *testing.T) {
	grouper := NewGrouper(0.85, testLogger())

	// Unrelated parts share no bucket, yet every pair meets a zero threshold.
	parts := []models.Part{
		makePart(1, "ABC-123", "Oil Filter"),
		makePart(2, "XYZ-999", "Alternator"),
	}

	v1 := grouper.GroupDuplicates(parts, 0, true, StrategyBruteForce)
	v2 := grouper.GroupDuplicates(parts, 0, true, StrategyBucketed)

	require.Len(t, v1, 1)
	assert.Equal(t, []int64{1, 2}, v1[0].MemberIDs())
	assert.Equal(t, groupIDSets(v1), groupIDSets(v2))
}

func TestGroupDuplicatesDeterministic(t *testing.T) {
	grouper := NewGrouper(0.85, testLogger())

	parts := []models.Part{
		makePart(4, "def456", "Brake Pad Front Set", "bp200"),
		makePart(1, "ABC-123", "Oil Filter", "OF-100"),
		makePart(3, "DEF-456", "Brake Pad Front", "BP-200"),
		makePart(2, "abc123", "Oil Filter", "XJ-55"),
	}

	first := grouper.GroupDuplicates(parts, 0.65, true, StrategyBucketed)
	second := grouper.GroupDuplicates(parts, 0.65, true, StrategyBucketed)
	assert.Equal(t, first, second)

	// Input order must not change the result.
	reversed := []models.Part{parts[3], parts[2], parts[1], parts[0]}
	third := grouper.GroupDuplicates(reversed, 0.65, true, StrategyBucketed)
	assert.Equal(t, first, third)
}

func TestGroupDuplicatesSkipsUncomparableParts(t *testing.T) {
	grouper := NewGrouper(0.85, testLogger())

	parts := []models.Part{
		makePart(1, "ABC-123", "Oil Filter"),
		makePart(2, "abc123", "Oil Filter"),
		makePart(3, "", ""),
		makePart(4, "x", "ab"),
	}

	groups := grouper.GroupDuplicates(parts, 0.65, true, StrategyBruteForce)

	require.Len(t, groups, 1)
	assert.Equal(t, []int64{1, 2}, groups[0].MemberIDs())
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		input    string
		expected Strategy
		wantErr  bool
	}{
		{"", StrategyBucketed, false},
		{"v2", StrategyBucketed, false},
		{"v1", StrategyBruteForce, false},
		{"bruteforce", StrategyBruteForce, false},
		{"v3", "", true},
	}

	for _, tt := range tests {
		t.Run("input_"+tt.input, func(t *testing.T) {
			got, err := ParseStrategy(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
