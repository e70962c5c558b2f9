package matching

import (
	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/normalize"
)

// Match reasons reported to operators.
const (
	ReasonExactSKU          = "exact SKU match"
	ReasonSharedPartNumber  = "shared part number"
	ReasonSimilarName       = "similar name"
	ReasonTransitiveCluster = "transitive cluster"
)

// Signal weights. Exact identifier matches dominate; fuzzy name similarity
// only nudges a pair over a threshold, it cannot form a confident match alone.
const (
	weightExactSKU   = 0.9
	weightPartNumber = 0.7
	weightName       = 0.3
)

// candidate is a part with its comparable forms precomputed once per run.
type candidate struct {
	part       models.Part
	sku        string
	partNums   map[string]struct{}
	nameTokens map[string]struct{}
}

func newCandidate(p models.Part) candidate {
	sku := p.NormalizedSKU
	if sku == "" {
		sku = normalize.Normalize(p.SKU)
	}
	if len(sku) < normalize.MinTokenLength {
		sku = ""
	}

	values := make([]string, 0, len(p.PartNumbers))
	for _, pn := range p.PartNumbers {
		if pn.NormalizedValue != "" {
			values = append(values, pn.NormalizedValue)
		} else {
			values = append(values, normalize.Apply(pn.Value, pn.NumberType))
		}
	}

	nums := make(map[string]struct{})
	for _, v := range normalize.NormalizeList(values) {
		nums[v] = struct{}{}
	}

	tokens := make(map[string]struct{})
	for _, tok := range normalize.NameTokens(p.Name) {
		tokens[tok] = struct{}{}
	}

	return candidate{part: p, sku: sku, partNums: nums, nameTokens: tokens}
}

// comparable reports whether the candidate carries any signal worth scoring.
func (c candidate) comparable() bool {
	return c.sku != "" || len(c.partNums) > 0 || len(c.nameTokens) > 0
}

// PairScorer combines individual match signals into one duplicate-confidence
// score for a pair of parts.
type PairScorer struct {
	scorer     *Scorer
	nameCutoff float64
}

// NewPairScorer creates a PairScorer. nameCutoff is the minimum name
// similarity for the name signal to contribute at all.
func NewPairScorer(nameCutoff float64) *PairScorer {
	return &PairScorer{scorer: NewScorer(), nameCutoff: nameCutoff}
}

// ScoreParts scores two parts directly, precomputing their comparable forms.
// Callers scoring many pairs should build candidates once and use Score.
func (ps *PairScorer) ScoreParts(a, b models.Part) models.PairScore {
	return ps.Score(newCandidate(a), newCandidate(b))
}

// Score compares two candidates. Symmetric: Score(a,b) == Score(b,a).
func (ps *PairScorer) Score(a, b candidate) models.PairScore {
	result := models.PairScore{PartAID: a.part.ID, PartBID: b.part.ID}

	if a.sku != "" && a.sku == b.sku {
		result.Score += weightExactSKU
		result.Reasons = append(result.Reasons, ReasonExactSKU)
	}

	if sharesValue(a.partNums, b.partNums) {
		result.Score += weightPartNumber
		result.Reasons = append(result.Reasons, ReasonSharedPartNumber)
	}

	// The name signal requires a shared token so that token bucketing in the
	// optimized strategy can never miss a scoring pair.
	if sharesValue(a.nameTokens, b.nameTokens) {
		sim := ps.scorer.NameSimilarity(a.part.Name, b.part.Name)
		if sim >= ps.nameCutoff {
			result.Score += weightName * sim
			result.Reasons = append(result.Reasons, ReasonSimilarName)
		}
	}

	if result.Score > 1.0 {
		result.Score = 1.0
	}
	return result
}

func sharesValue(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for v := range a {
		if _, ok := b[v]; ok {
			return true
		}
	}
	return false
}
