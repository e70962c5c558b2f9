package models

// PairScore is the scored comparison of two parts.
type PairScore struct {
	PartAID int64    `json:"part_a_id"`
	PartBID int64    `json:"part_b_id"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// DuplicateGroup is one cluster of likely-duplicate parts. Groups are computed
// per detection request and never persisted.
type DuplicateGroup struct {
	GroupID string   `json:"group_id"`
	Members []Part   `json:"members"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// MemberIDs returns the member part ids in group order.
func (g DuplicateGroup) MemberIDs() []int64 {
	ids := make([]int64, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.ID)
	}
	return ids
}
