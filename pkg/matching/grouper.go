package matching

import (
	"fmt"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/thistle/pkg/models"
)

// Strategy selects how candidate pairs are enumerated before scoring.
type Strategy string

const (
	// StrategyBruteForce compares every pair of parts.
	StrategyBruteForce Strategy = "v1"
	// StrategyBucketed only compares pairs sharing a normalized SKU, part
	// number or name token. Produces the same groups as StrategyBruteForce
	// because every scoring signal requires one of those shared values.
	StrategyBucketed Strategy = "v2"
)

// ParseStrategy maps a request value onto a Strategy, defaulting to bucketed.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "v2", "bucketed":
		return StrategyBucketed, nil
	case "v1", "brute", "bruteforce":
		return StrategyBruteForce, nil
	default:
		return "", fmt.Errorf("unknown detection strategy: %s", s)
	}
}

// Grouper clusters parts into duplicate groups via above-threshold similarity
// edges and connected components.
type Grouper struct {
	pairScorer *PairScorer
	logger     ectologger.Logger
}

func NewGrouper(nameCutoff float64, logger ectologger.Logger) *Grouper {
	return &Grouper{
		pairScorer: NewPairScorer(nameCutoff),
		logger:     logger,
	}
}

type edge struct {
	a, b    int
	score   float64
	reasons []string
}

// GroupDuplicates clusters parts whose pairwise score meets minScore. Groups
// are connected components with at least two members, so clusters may be
// transitive rather than fully connected; such groups carry an extra reason.
// Output is deterministic: sorted by descending score, ties broken by lowest
// member id.
func (g *Grouper) GroupDuplicates(parts []models.Part, minScore float64, excludeMerged bool, strategy Strategy) []models.DuplicateGroup {
	candidates := make([]candidate, 0, len(parts))
	for _, p := range parts {
		if excludeMerged && !p.IsActive {
			continue
		}
		c := newCandidate(p)
		if !c.comparable() {
			g.logger.WithFields(map[string]any{
				"part_id": p.ID,
				"sku":     p.SKU,
			}).Debug("Skipping part with no comparable identifiers")
			continue
		}
		candidates = append(candidates, c)
	}

	// Stable input order regardless of how the caller loaded the parts.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].part.ID < candidates[j].part.ID
	})

	// At minScore <= 0 every pair clears the threshold, including pairs with
	// no shared SKU, part number or name token. Bucketing would never
	// enumerate those, so both strategies must enumerate everything to keep
	// their output identical.
	var pairs [][2]int
	if strategy == StrategyBruteForce || minScore <= 0 {
		pairs = bruteForcePairs(len(candidates))
	} else {
		pairs = bucketedPairs(candidates)
	}

	uf := newUnionFind(len(candidates))
	var edges []edge
	for _, p := range pairs {
		scored := g.pairScorer.Score(candidates[p[0]], candidates[p[1]])
		if scored.Score >= minScore {
			edges = append(edges, edge{a: p[0], b: p[1], score: scored.Score, reasons: scored.Reasons})
			uf.union(p[0], p[1])
		}
	}

	return g.assembleGroups(candidates, edges, uf)
}

func (g *Grouper) assembleGroups(candidates []candidate, edges []edge, uf *unionFind) []models.DuplicateGroup {
	type component struct {
		members   []int
		edgeCount int
		maxScore  float64
		reasons   map[string]struct{}
	}

	components := make(map[int]*component)
	for i := range candidates {
		root := uf.find(i)
		comp, ok := components[root]
		if !ok {
			comp = &component{reasons: make(map[string]struct{})}
			components[root] = comp
		}
		comp.members = append(comp.members, i)
	}

	for _, e := range edges {
		comp := components[uf.find(e.a)]
		comp.edgeCount++
		if e.score > comp.maxScore {
			comp.maxScore = e.score
		}
		for _, r := range e.reasons {
			comp.reasons[r] = struct{}{}
		}
	}

	groups := make([]models.DuplicateGroup, 0)
	for _, comp := range components {
		n := len(comp.members)
		if n < 2 {
			continue
		}

		// Members are index-ordered, which is id-ordered after the input sort.
		members := make([]models.Part, 0, n)
		for _, idx := range comp.members {
			members = append(members, candidates[idx].part)
		}

		if comp.edgeCount < n*(n-1)/2 {
			comp.reasons[ReasonTransitiveCluster] = struct{}{}
		}

		reasons := make([]string, 0, len(comp.reasons))
		for r := range comp.reasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)

		groups = append(groups, models.DuplicateGroup{
			GroupID: fmt.Sprintf("grp-%d", members[0].ID),
			Members: members,
			Score:   comp.maxScore,
			Reasons: reasons,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Score != groups[j].Score {
			return groups[i].Score > groups[j].Score
		}
		return groups[i].Members[0].ID < groups[j].Members[0].ID
	})

	return groups
}

func bruteForcePairs(n int) [][2]int {
	var pairs [][2]int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, [2]int{i, j})
		}
	}
	return pairs
}

// bucketedPairs enumerates only pairs that share at least one comparable
// value. Buckets never miss a scoring pair: every signal in PairScorer.Score
// requires a shared normalized SKU, part number or name token.
func bucketedPairs(candidates []candidate) [][2]int {
	buckets := make(map[string][]int)
	add := func(key string, idx int) {
		buckets[key] = append(buckets[key], idx)
	}

	for i, c := range candidates {
		if c.sku != "" {
			add("sku:"+c.sku, i)
		}
		for pn := range c.partNums {
			add("pn:"+pn, i)
		}
		for tok := range c.nameTokens {
			add("tok:"+tok, i)
		}
	}

	seen := make(map[[2]int]struct{})
	var pairs [][2]int
	for _, members := range buckets {
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				key := [2]int{members[x], members[y]}
				if key[0] > key[1] {
					key[0], key[1] = key[1], key[0]
				}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				pairs = append(pairs, key)
			}
		}
	}

	// Deterministic scoring order.
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}

// unionFind is a disjoint-set over candidate indexes.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
}
