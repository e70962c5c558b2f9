package merging

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/thistle/pkg/models"
)

func newTestExecutor(store *fakeStore, locker *fakeLocker) *Executor {
	return NewExecutor(store, locker, 30*time.Second, store, store, store, store, nil, nil, testLogger())
}

func TestExecuteMergeHappyPath(t *testing.T) {
	store := seededStore()
	store.partNumbers = []models.PartNumber{
		{ID: 1, PartID: 1, NumberType: "oem", Value: "OF-100"},
		{ID: 2, PartID: 2, NumberType: "oem", Value: "of100"},
		{ID: 3, PartID: 2, NumberType: "supplier", Value: "SUP-77"},
	}
	store.tags = append(store.tags, struct {
		PartID int64
		Tag    string
	}{PartID: 2, Tag: "fast-mover"})

	locker := &fakeLocker{}
	executor := newTestExecutor(store, locker)

	rules := models.MergeRules{MergePartNumbers: true, MergeTags: true, PreserveHistory: true}
	result, err := executor.ExecuteMerge(testCtx(), 1, []int64{2}, rules, "cleanup")
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.TargetPartID)
	assert.Equal(t, []int64{2}, result.SourcePartIDs.Data)
	assert.Equal(t, "op-7", result.OperatorID)
	assert.Equal(t, "tenant-1", result.TenantID)
	assert.Equal(t, "cleanup", result.Notes)

	// Redirects: every reference now points at the keep part.
	for table, rows := range store.refs {
		for _, row := range rows {
			assert.Equal(t, int64(1), row.PartID, "table %s row %d", table, row.ID)
		}
	}
	assert.Equal(t, 2, result.RowsUpdated.Data["order_lines"])
	assert.Equal(t, 1, result.RowsUpdated.Data["invoice_lines"])
	assert.Equal(t, 1, result.RowsUpdated.Data["price_history"])
	assert.Equal(t, 2, result.RowsUpdated.Data["inventory_levels"])

	// Source part deactivated with a mangled SKU.
	source := store.parts[2]
	assert.False(t, source.IsActive)
	assert.True(t, strings.HasPrefix(source.SKU, "abc123~merged~"))
	require.NotNil(t, source.MergedIntoID)
	assert.Equal(t, int64(1), *source.MergedIntoID)

	// Keep part carries the consolidated stock: 15 @ loc 1 WAC 6.0, 3 @ loc 2
	// WAC 4.0 gives 18 total at (15*6+3*4)/18.
	keep := store.parts[1]
	assert.True(t, keep.IsActive)
	assert.Equal(t, 18.0, keep.QuantityOnHand)
	assert.InDelta(t, (15*6.0+3*4.0)/18.0, keep.CostPrice, 0.0001)

	// Part numbers unioned with normalized dedupe: of100 dropped, SUP-77 moved.
	var keepNumbers []string
	for _, pn := range store.partNumbers {
		require.Equal(t, int64(1), pn.PartID)
		keepNumbers = append(keepNumbers, pn.Value)
	}
	assert.ElementsMatch(t, []string{"OF-100", "SUP-77"}, keepNumbers)
	assert.Equal(t, 1, result.RowsUpdated.Data["part_numbers"])

	require.Len(t, store.tags, 1)
	assert.Equal(t, int64(1), store.tags[0].PartID)

	require.Len(t, store.audits, 1)
	assert.Equal(t, result.ID, store.audits[0].ID)

	require.Len(t, locker.keys, 1)
	assert.Equal(t, "merge:tenant-1:1:2", locker.keys[0])
}

func TestExecuteMergeRejectsSelfMerge(t *testing.T) {
	executor := newTestExecutor(seededStore(), &fakeLocker{})

	_, err := executor.ExecuteMerge(testCtx(), 1, []int64{2, 1}, models.MergeRules{}, "")
	require.Error(t, err)
	assert.True(t, IsInvalidMergeRequest(err))
}

func TestExecuteMergeRejectsInactiveSource(t *testing.T) {
	store := seededStore()
	p := store.parts[2]
	p.IsActive = false
	store.parts[2] = p

	executor := newTestExecutor(store, &fakeLocker{})

	_, err := executor.ExecuteMerge(testCtx(), 1, []int64{2}, models.MergeRules{}, "")
	require.Error(t, err)
	assert.True(t, IsInvalidMergeRequest(err))
}

func TestExecuteMergeConflictWithoutOverride(t *testing.T) {
	store := seededStore()
	p := store.parts[2]
	p.Name = "Oil Filter Premium"
	store.parts[2] = p

	executor := newTestExecutor(store, &fakeLocker{})

	_, err := executor.ExecuteMerge(testCtx(), 1, []int64{2}, models.MergeRules{}, "")
	require.Error(t, err)
	assert.True(t, IsConflictRequiresResolution(err))

	// Nothing changed.
	assert.True(t, store.parts[2].IsActive)
	assert.Empty(t, store.audits)
}

func TestExecuteMergeConflictWithOverride(t *testing.T) {
	store := seededStore()
	p := store.parts[2]
	p.Name = "Oil Filter Premium"
	store.parts[2] = p

	executor := newTestExecutor(store, &fakeLocker{})

	rules := models.MergeRules{FieldOverrides: map[string]any{"name": "Oil Filter Premium"}}
	_, err := executor.ExecuteMerge(testCtx(), 1, []int64{2}, rules, "")
	require.NoError(t, err)

	assert.Equal(t, "Oil Filter Premium", store.parts[1].Name)
	assert.False(t, store.parts[2].IsActive)
}

func TestExecuteMergeHistoryStaysWithSource(t *testing.T) {
	store := seededStore()
	executor := newTestExecutor(store, &fakeLocker{})

	result, err := executor.ExecuteMerge(testCtx(), 1, []int64{2}, models.MergeRules{}, "")
	require.NoError(t, err)

	// Without PreserveHistory the price rows keep their original part.
	_, counted := result.RowsUpdated.Data["price_history"]
	assert.False(t, counted)
	require.Len(t, store.refs["price_history"], 1)
	assert.Equal(t, int64(2), store.refs["price_history"][0].PartID)

	for _, row := range store.refs["order_lines"] {
		assert.Equal(t, int64(1), row.PartID)
	}
}

func TestExecuteMergeRejectsUnknownOverrideField(t *testing.T) {
	executor := newTestExecutor(seededStore(), &fakeLocker{})

	rules := models.MergeRules{FieldOverrides: map[string]any{"sku": "HACK"}}
	_, err := executor.ExecuteMerge(testCtx(), 1, []int64{2}, rules, "")
	require.Error(t, err)
	assert.True(t, IsInvalidMergeRequest(err))
}

func TestExecuteMergeRollbackOnAuditFailure(t *testing.T) {
	store := seededStore()
	before := store.snapshot()
	store.failOnStep = "audit"

	executor := newTestExecutor(store, &fakeLocker{})

	_, err := executor.ExecuteMerge(testCtx(), 1, []int64{2}, models.MergeRules{}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merge_audit")

	// Post-failure state equals pre-merge state exactly.
	assert.Equal(t, before.parts, store.parts)
	assert.Equal(t, before.refs, store.refs)
	assert.Equal(t, before.levels, store.levels)
	assert.Empty(t, store.audits)
}

func TestExecuteMergeRollbackOnRedirectFailure(t *testing.T) {
	store := seededStore()
	before := store.snapshot()
	store.failOnStep = "redirect:price_history"

	executor := newTestExecutor(store, &fakeLocker{})

	_, err := executor.ExecuteMerge(testCtx(), 1, []int64{2}, models.MergeRules{PreserveHistory: true}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price_history")

	assert.Equal(t, before.parts, store.parts)
	assert.Equal(t, before.refs, store.refs)
	assert.Equal(t, before.levels, store.levels)
}

func TestMangleSKU(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mangled := MangleSKU("ABC-123", at)

	assert.Equal(t, "ABC-123~merged~"+"1772366400", mangled)
	assert.NotEqual(t, "ABC-123", mangled)
}

func TestMergeLockKeySortsIDs(t *testing.T) {
	a := mergeLockKey("t1", 5, []int64{9, 2})
	b := mergeLockKey("t1", 2, []int64{5, 9})

	assert.Equal(t, a, b)
	assert.Equal(t, "merge:t1:2:5:9", a)
}
