package models

import (
	"time"

	"github.com/Ramsey-B/thistle/pkg/database"
)

// MergeRules configures how a merge consolidates a group into the keep part.
type MergeRules struct {
	MergePartNumbers  bool           `json:"mergePartNumbers"`
	MergeApplications bool           `json:"mergeApplications"`
	MergeTags         bool           `json:"mergeTags"`
	PreserveHistory   bool           `json:"preserveHistory"`
	FieldOverrides    map[string]any `json:"fieldOverrides,omitempty"`
}

// Conflict is one field whose values diverge across group members.
type Conflict struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Field       string   `json:"field"`
	Values      []string `json:"values"`
}

// LocationImpact is the consolidated inventory view for one location.
type LocationImpact struct {
	LocationID int64   `json:"location_id"`
	Quantity   float64 `json:"quantity"`
	WAC        float64 `json:"wac"`
}

// InventoryImpact summarizes inventory consolidation across locations.
type InventoryImpact struct {
	Locations []LocationImpact `json:"locations"`
}

// MergeImpact reports every downstream row a merge would touch.
type MergeImpact struct {
	ByTable   map[string]int  `json:"byTable"`
	Inventory InventoryImpact `json:"inventory"`
}

// MergePreview is a read-only projection of one prospective merge.
type MergePreview struct {
	KeepPartID   int64       `json:"keepPartId"`
	MergePartIDs []int64     `json:"mergePartIds"`
	Impact       MergeImpact `json:"impact"`
	Conflicts    []Conflict  `json:"conflicts"`
	Warnings     []string    `json:"warnings"`
}

// MergeResult is the persisted audit record of a completed merge. Immutable
// once written.
type MergeResult struct {
	ID            int64                          `json:"id" db:"id"`
	TenantID      string                         `json:"tenant_id" db:"tenant_id"`
	TargetPartID  int64                          `json:"target_part_id" db:"target_part_id"`
	SourcePartIDs database.JSONB[[]int64]        `json:"source_part_ids" db:"source_part_ids"`
	RowsUpdated   database.JSONB[map[string]int] `json:"rows_updated" db:"rows_updated"`
	OperatorID    string                         `json:"operator_id" db:"operator_id"`
	Notes         string                         `json:"notes" db:"notes"`
	CreatedAt     time.Time                      `json:"created_at" db:"created_at"`
}
