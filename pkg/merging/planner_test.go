package merging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/thistle/pkg/appcontext"
	"github.com/Ramsey-B/thistle/pkg/models"
)

func testCtx() context.Context {
	ctx := appcontext.SetTenantID(context.Background(), "tenant-1")
	return appcontext.SetOperatorID(ctx, "op-7")
}

func seededStore() *fakeStore {
	store := newFakeStore()
	store.addPart(models.Part{ID: 1, SKU: "ABC-123", NormalizedSKU: "abc123", Name: "Oil Filter", CostPrice: 5, IsActive: true})
	store.addPart(models.Part{ID: 2, SKU: "abc123", NormalizedSKU: "abc123", Name: "Oil Filter", CostPrice: 5, IsActive: true})
	store.addPart(models.Part{ID: 3, SKU: "XYZ-9", NormalizedSKU: "xyz9", Name: "Alternator", IsActive: true})

	store.addRef("order_lines", 100, 2)
	store.addRef("order_lines", 101, 2)
	store.addRef("order_lines", 102, 1)
	store.addRef("invoice_lines", 200, 2)
	store.addRef("price_history", 300, 2)

	store.levels = []models.InventoryLevel{
		{PartID: 1, LocationID: 1, Quantity: 10, UnitCost: 5},
		{PartID: 2, LocationID: 1, Quantity: 5, UnitCost: 8},
		{PartID: 2, LocationID: 2, Quantity: 3, UnitCost: 4},
	}
	return store
}

func newTestPlanner(store *fakeStore, warnThreshold int) *Planner {
	return NewPlanner(store, store, store, warnThreshold, testLogger())
}

func TestPlanMergeImpactCounts(t *testing.T) {
	store := seededStore()
	store.partNumbers = append(store.partNumbers, models.PartNumber{ID: 1, PartID: 2, Value: "WIX-51348"})
	planner := newTestPlanner(store, 0)

	preview, err := planner.PlanMerge(testCtx(), 1, []int64{2}, models.MergeRules{PreserveHistory: true})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		"order_lines":       2,
		"invoice_lines":     1,
		"receipt_lines":     0,
		"price_history":     1,
		"part_numbers":      1,
		"part_applications": 0,
		"part_tags":         0,
		"inventory_levels":  2,
	}, preview.Impact.ByTable)
}

func TestPlanMergeImpactWithoutPreserveHistory(t *testing.T) {
	planner := newTestPlanner(seededStore(), 0)

	preview, err := planner.PlanMerge(testCtx(), 1, []int64{2}, models.MergeRules{})
	require.NoError(t, err)

	// History rows stay with the source, so they are not part of the impact.
	assert.NotContains(t, preview.Impact.ByTable, "price_history")
	assert.Equal(t, 2, preview.Impact.ByTable["order_lines"])
}

func TestPlanMergeWACConsolidation(t *testing.T) {
	planner := newTestPlanner(seededStore(), 0)

	preview, err := planner.PlanMerge(testCtx(), 1, []int64{2}, models.MergeRules{})
	require.NoError(t, err)

	require.Len(t, preview.Impact.Inventory.Locations, 2)

	loc1 := preview.Impact.Inventory.Locations[0]
	assert.Equal(t, int64(1), loc1.LocationID)
	assert.Equal(t, 15.0, loc1.Quantity)
	assert.InDelta(t, 6.0, loc1.WAC, 0.0001)

	loc2 := preview.Impact.Inventory.Locations[1]
	assert.Equal(t, int64(2), loc2.LocationID)
	assert.Equal(t, 3.0, loc2.Quantity)
	assert.InDelta(t, 4.0, loc2.WAC, 0.0001)
}

func TestPlanMergeIdempotent(t *testing.T) {
	planner := newTestPlanner(seededStore(), 0)

	first, err := planner.PlanMerge(testCtx(), 1, []int64{2}, models.MergeRules{})
	require.NoError(t, err)
	second, err := planner.PlanMerge(testCtx(), 1, []int64{2}, models.MergeRules{})
	require.NoError(t, err)

	assert.Equal(t, first.Impact.ByTable, second.Impact.ByTable)
	assert.Equal(t, first.Impact.Inventory, second.Impact.Inventory)
}

func TestPlanMergeConflictsAndWarnings(t *testing.T) {
	store := seededStore()
	p := store.parts[2]
	p.Name = "Oil Filter Premium"
	store.parts[2] = p

	planner := newTestPlanner(store, 3)

	preview, err := planner.PlanMerge(testCtx(), 1, []int64{2}, models.MergeRules{})
	require.NoError(t, err)

	require.Len(t, preview.Conflicts, 1)
	assert.Equal(t, "name", preview.Conflicts[0].Field)
	assert.Equal(t, []string{"Oil Filter", "Oil Filter Premium"}, preview.Conflicts[0].Values)

	// 5 impacted rows >= threshold 3, plus the unresolved conflict.
	require.Len(t, preview.Warnings, 2)
	assert.Contains(t, preview.Warnings[0], "5 referencing rows")
	assert.Contains(t, preview.Warnings[1], `field "name" conflicts`)
}

func TestPlanMergeRejectsSelfMerge(t *testing.T) {
	planner := newTestPlanner(seededStore(), 0)

	_, err := planner.PlanMerge(testCtx(), 1, []int64{1}, models.MergeRules{})
	require.Error(t, err)
	assert.True(t, IsInvalidMergeRequest(err))
}

func TestPlanMergeRejectsMissingPart(t *testing.T) {
	planner := newTestPlanner(seededStore(), 0)

	_, err := planner.PlanMerge(testCtx(), 1, []int64{99}, models.MergeRules{})
	require.Error(t, err)
	assert.True(t, IsInvalidMergeRequest(err))
}

func TestConsolidateInventoryZeroQuantity(t *testing.T) {
	locations, warnings := ConsolidateInventory([]models.InventoryLevel{
		{PartID: 1, LocationID: 1, Quantity: 5, UnitCost: 10},
		{PartID: 2, LocationID: 1, Quantity: -5, UnitCost: 10},
	})

	require.Len(t, locations, 1)
	assert.Equal(t, 0.0, locations[0].Quantity)
	assert.Equal(t, 0.0, locations[0].WAC)
	assert.Empty(t, warnings)
}

func TestConsolidateInventoryNegativeWarnings(t *testing.T) {
	locations, warnings := ConsolidateInventory([]models.InventoryLevel{
		{PartID: 1, LocationID: 1, Quantity: 2, UnitCost: 5},
		{PartID: 2, LocationID: 1, Quantity: -6, UnitCost: 5},
	})

	require.Len(t, locations, 1)
	assert.Equal(t, -4.0, locations[0].Quantity)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "negative consolidated quantity")
}
