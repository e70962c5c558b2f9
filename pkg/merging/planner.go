package merging

import (
	"context"
	"fmt"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/tracing"
)

// Planner computes read-only merge previews: per-table impact counts,
// consolidated inventory, conflicts and warnings. Nothing is mutated.
type Planner struct {
	parts               PartStore
	refs                ReferenceStore
	inventory           InventoryStore
	impactWarnThreshold int
	logger              ectologger.Logger
}

func NewPlanner(parts PartStore, refs ReferenceStore, inventory InventoryStore, impactWarnThreshold int, logger ectologger.Logger) *Planner {
	return &Planner{
		parts:               parts,
		refs:                refs,
		inventory:           inventory,
		impactWarnThreshold: impactWarnThreshold,
		logger:              logger,
	}
}

// PlanMerge previews the merge of mergePartIDs into keepPartID. State may
// change between preview and execution, so the result is advisory; the
// executor re-validates everything.
func (p *Planner) PlanMerge(ctx context.Context, keepPartID int64, mergePartIDs []int64, rules models.MergeRules) (*models.MergePreview, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Planner.PlanMerge")
	defer span.End()

	keep, others, err := loadAndValidateParts(ctx, p.parts, keepPartID, mergePartIDs, false)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	tables := append(append([]TableRef(nil), p.refs.ReferenceTables()...), p.refs.AttributeTables()...)
	for _, ref := range tables {
		if ref.Table == priceHistoryTable && !rules.PreserveHistory {
			// Those rows stay with the deactivated source part.
			continue
		}
		count, err := p.refs.CountTable(ctx, ref, mergePartIDs)
		if err != nil {
			return nil, PreviewComputationFailed(fmt.Errorf("counting %s: %w", ref.Table, err))
		}
		counts[ref.Table] = count
	}

	allIDs := append([]int64{keepPartID}, mergePartIDs...)
	levels, err := p.inventory.ListLevels(ctx, allIDs)
	if err != nil {
		return nil, PreviewComputationFailed(err)
	}
	consolidated, wacWarnings := ConsolidateInventory(levels)

	detected := DetectConflicts(*keep, others, ConflictFields)

	preview := &models.MergePreview{
		KeepPartID:   keepPartID,
		MergePartIDs: mergePartIDs,
		Impact: models.MergeImpact{
			ByTable:   counts,
			Inventory: models.InventoryImpact{Locations: consolidated},
		},
		Conflicts: conflictList(detected, ConflictFields),
		Warnings:  wacWarnings,
	}

	total := 0
	for _, c := range counts {
		total += c
	}
	if p.impactWarnThreshold > 0 && total >= p.impactWarnThreshold {
		preview.Warnings = append(preview.Warnings,
			fmt.Sprintf("merge would update %d referencing rows across %d tables", total, len(counts)))
	}

	for _, c := range preview.Conflicts {
		if _, resolved := rules.FieldOverrides[c.Field]; !resolved {
			preview.Warnings = append(preview.Warnings,
				fmt.Sprintf("field %q conflicts and has no override: execution will be rejected until resolved", c.Field))
		}
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"keep_part_id":   keepPartID,
		"merge_part_ids": mergePartIDs,
		"impacted_rows":  total,
		"conflicts":      len(preview.Conflicts),
	}).Info("Merge preview computed")

	return preview, nil
}

// ConsolidateInventory groups stock rows by location across all involved
// parts and computes the merged quantity and value-weighted average cost per
// location. WAC = sum(qty*cost) / sum(qty); a location with zero total
// quantity keeps WAC 0 rather than dividing by zero. Returns warnings for
// negative effective quantities or costs, which should never happen but must
// surface rather than pass silently.
func ConsolidateInventory(levels []models.InventoryLevel) ([]models.LocationImpact, []string) {
	type acc struct {
		qty   float64
		value float64
	}

	byLocation := make(map[int64]*acc)
	for _, lvl := range levels {
		a, ok := byLocation[lvl.LocationID]
		if !ok {
			a = &acc{}
			byLocation[lvl.LocationID] = a
		}
		a.qty += lvl.Quantity
		a.value += lvl.Quantity * lvl.UnitCost
	}

	locations := make([]models.LocationImpact, 0, len(byLocation))
	var warnings []string
	for locID, a := range byLocation {
		impact := models.LocationImpact{LocationID: locID, Quantity: a.qty}
		if a.qty != 0 {
			impact.WAC = a.value / a.qty
		}
		if impact.Quantity < 0 {
			warnings = append(warnings, fmt.Sprintf("location %d would have negative consolidated quantity %.2f", locID, impact.Quantity))
		}
		if impact.WAC < 0 {
			warnings = append(warnings, fmt.Sprintf("location %d would have negative weighted average cost %.4f", locID, impact.WAC))
		}
		locations = append(locations, impact)
	}

	sort.Slice(locations, func(i, j int) bool {
		return locations[i].LocationID < locations[j].LocationID
	})
	sort.Strings(warnings)

	return locations, warnings
}

// loadAndValidateParts enforces the shared request invariants: no self-merge,
// no duplicate sources, every id exists and is active. forUpdate selects the
// rows under row locks for the executor.
func loadAndValidateParts(ctx context.Context, store PartStore, keepPartID int64, mergePartIDs []int64, forUpdate bool) (*models.Part, []models.Part, error) {
	if len(mergePartIDs) == 0 {
		return nil, nil, InvalidMergeRequest("mergePartIds must not be empty")
	}

	seen := map[int64]struct{}{keepPartID: {}}
	for _, id := range mergePartIDs {
		if id == keepPartID {
			return nil, nil, InvalidMergeRequest("part %d cannot be merged into itself", keepPartID)
		}
		if _, dup := seen[id]; dup {
			return nil, nil, InvalidMergeRequest("part %d appears more than once in mergePartIds", id)
		}
		seen[id] = struct{}{}
	}

	allIDs := append([]int64{keepPartID}, mergePartIDs...)
	var (
		parts []models.Part
		err   error
	)
	if forUpdate {
		parts, err = store.LockByIDs(ctx, allIDs)
	} else {
		parts, err = store.GetByIDs(ctx, allIDs)
	}
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[int64]models.Part, len(parts))
	for _, p := range parts {
		byID[p.ID] = p
	}

	for _, id := range allIDs {
		part, ok := byID[id]
		if !ok {
			return nil, nil, InvalidMergeRequest("part %d does not exist", id)
		}
		if !part.IsActive {
			return nil, nil, InvalidMergeRequest("part %d is inactive (already merged)", id)
		}
	}

	keep := byID[keepPartID]
	others := make([]models.Part, 0, len(mergePartIDs))
	for _, id := range mergePartIDs {
		others = append(others, byID[id])
	}

	return &keep, others, nil
}
