package merging

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/thistle/pkg/appcontext"
	"github.com/Ramsey-B/thistle/pkg/database"
	"github.com/Ramsey-B/thistle/pkg/metrics"
	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/tracing"
)

// Emitter publishes a completed merge to downstream consumers.
type Emitter interface {
	EmitMergeCompleted(ctx context.Context, result *models.MergeResult) error
}

// CacheInvalidator drops cached detection results for a tenant after its part
// set changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, tenantID string) error
}

// Executor performs the transactional merge of a duplicate group into its
// keep part. Either every step commits or none do.
type Executor struct {
	uow       UnitOfWork
	locker    Locker
	lockTTL   time.Duration
	parts     PartStore
	refs      ReferenceStore
	inventory InventoryStore
	audit     AuditStore
	emitter   Emitter
	cache     CacheInvalidator
	logger    ectologger.Logger
}

func NewExecutor(
	uow UnitOfWork,
	locker Locker,
	lockTTL time.Duration,
	parts PartStore,
	refs ReferenceStore,
	inventory InventoryStore,
	audit AuditStore,
	emitter Emitter,
	cache CacheInvalidator,
	logger ectologger.Logger,
) *Executor {
	return &Executor{
		uow:       uow,
		locker:    locker,
		lockTTL:   lockTTL,
		parts:     parts,
		refs:      refs,
		inventory: inventory,
		audit:     audit,
		emitter:   emitter,
		cache:     cache,
		logger:    logger,
	}
}

// ExecuteMerge merges mergePartIDs into keepPartID under a distributed lock
// and a single transaction. Inputs are re-validated inside the transaction;
// previews are advisory and never trusted. Retrying an identical request
// after a rollback is safe since no partial state persists, but a retry after
// commit is rejected because the sources are no longer active.
func (e *Executor) ExecuteMerge(ctx context.Context, keepPartID int64, mergePartIDs []int64, rules models.MergeRules, notes string) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Executor.ExecuteMerge")
	defer span.End()

	tenantID := appcontext.GetTenantID(ctx)
	start := time.Now()

	var result *models.MergeResult
	lockKey := mergeLockKey(tenantID, keepPartID, mergePartIDs)
	err := e.locker.WithLock(ctx, lockKey, e.lockTTL, func() error {
		return e.uow.WithTx(ctx, func(ctxTx context.Context) error {
			merged, txErr := e.executeInTx(ctxTx, keepPartID, mergePartIDs, rules, notes)
			if txErr != nil {
				return txErr
			}
			result = merged
			return nil
		})
	})
	if err != nil {
		metrics.MergesTotal.WithLabelValues(tenantID, "failed").Inc()
		return nil, err
	}

	metrics.MergesTotal.WithLabelValues(tenantID, "success").Inc()
	metrics.MergeDuration.WithLabelValues(tenantID).Observe(time.Since(start).Seconds())
	for table, count := range result.RowsUpdated.Data {
		metrics.RowsRedirectedTotal.WithLabelValues(table).Add(float64(count))
	}

	// Post-commit side effects are best effort. The merge already committed,
	// so failures here are logged rather than surfaced.
	if e.cache != nil {
		if err := e.cache.Invalidate(ctx, tenantID); err != nil {
			e.logger.WithContext(ctx).WithError(err).Warn("Failed to invalidate detection cache after merge")
		}
	}
	if e.emitter != nil {
		if err := e.emitter.EmitMergeCompleted(ctx, result); err != nil {
			e.logger.WithContext(ctx).WithError(err).Warn("Failed to emit merge completed event")
		}
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"keep_part_id":   keepPartID,
		"merge_part_ids": mergePartIDs,
		"merge_id":       result.ID,
	}).Info("Merge committed")

	return result, nil
}

func (e *Executor) executeInTx(ctx context.Context, keepPartID int64, mergePartIDs []int64, rules models.MergeRules, notes string) (*models.MergeResult, error) {
	// Step 1: re-validate under row locks.
	keep, others, err := loadAndValidateParts(ctx, e.parts, keepPartID, mergePartIDs, true)
	if err != nil {
		return nil, err
	}

	detected := DetectConflicts(*keep, others, ConflictFields)
	for _, field := range ConflictFields {
		values, conflicting := detected[field]
		if !conflicting {
			continue
		}
		if _, resolved := rules.FieldOverrides[field]; !resolved {
			return nil, ConflictRequiresResolution(field, values)
		}
	}

	// Step 2: redirect foreign keys across the dependent tables in order.
	rowsUpdated := make(map[string]int)
	for _, ref := range e.refs.ReferenceTables() {
		if ref.Table == priceHistoryTable && !rules.PreserveHistory {
			continue
		}
		moved, err := e.refs.RedirectTable(ctx, ref, mergePartIDs, keepPartID)
		if err != nil {
			return nil, MergeExecutionFailed("redirect_references", ref.Table, err)
		}
		rowsUpdated[ref.Table] = moved
	}

	// Step 3: consolidate inventory per location.
	allIDs := append([]int64{keepPartID}, mergePartIDs...)
	levels, err := e.inventory.ListLevels(ctx, allIDs)
	if err != nil {
		return nil, MergeExecutionFailed("consolidate_inventory", "inventory_levels", err)
	}
	consolidated, _ := ConsolidateInventory(levels)
	if err := e.inventory.ReplaceLevels(ctx, keepPartID, consolidated, mergePartIDs); err != nil {
		return nil, MergeExecutionFailed("consolidate_inventory", "inventory_levels", err)
	}

	sourceRows := 0
	for _, lvl := range levels {
		if lvl.PartID != keepPartID {
			sourceRows++
		}
	}
	rowsUpdated["inventory_levels"] = sourceRows

	totalQty, totalWAC := overallStock(consolidated)
	if err := e.parts.UpdateStock(ctx, keepPartID, totalQty, totalWAC); err != nil {
		return nil, MergeExecutionFailed("consolidate_inventory", "parts", err)
	}

	// Steps 4-6: optional attribute unions.
	if rules.MergePartNumbers {
		moved, err := e.refs.MergePartNumbers(ctx, mergePartIDs, keepPartID)
		if err != nil {
			return nil, MergeExecutionFailed("merge_part_numbers", "part_numbers", err)
		}
		rowsUpdated["part_numbers"] = moved
	}
	if rules.MergeApplications {
		moved, err := e.refs.MergeApplications(ctx, mergePartIDs, keepPartID)
		if err != nil {
			return nil, MergeExecutionFailed("merge_applications", "part_applications", err)
		}
		rowsUpdated["part_applications"] = moved
	}
	if rules.MergeTags {
		moved, err := e.refs.MergeTags(ctx, mergePartIDs, keepPartID)
		if err != nil {
			return nil, MergeExecutionFailed("merge_tags", "part_tags", err)
		}
		rowsUpdated["part_tags"] = moved
	}

	// Step 7: apply operator-chosen field overrides onto the keep part.
	// Applied after stock consolidation so an overridden cost_price wins.
	if len(rules.FieldOverrides) > 0 {
		overrides, err := validateOverrides(rules.FieldOverrides)
		if err != nil {
			return nil, err
		}
		if err := e.parts.UpdateFields(ctx, keepPartID, overrides); err != nil {
			return nil, MergeExecutionFailed("apply_overrides", "parts", err)
		}
	}

	// Step 8: deactivate sources and mangle their SKUs so they can never
	// collide with a live SKU.
	now := time.Now().UTC()
	for _, source := range others {
		mangled := MangleSKU(source.SKU, now)
		if err := e.parts.Deactivate(ctx, source.ID, mangled, keepPartID); err != nil {
			return nil, MergeExecutionFailed("deactivate_sources", "parts", err)
		}
	}
	rowsUpdated["parts"] = len(others)

	// Step 9: write the audit row.
	result := &models.MergeResult{
		TenantID:      appcontext.GetTenantID(ctx),
		TargetPartID:  keepPartID,
		SourcePartIDs: database.NewJSONB(mergePartIDs),
		RowsUpdated:   database.NewJSONB(rowsUpdated),
		OperatorID:    appcontext.GetOperatorID(ctx),
		Notes:         notes,
		CreatedAt:     now,
	}
	if err := e.audit.Insert(ctx, result); err != nil {
		return nil, MergeExecutionFailed("write_audit", "merge_audit", err)
	}

	return result, nil
}

// MangleSKU renames a merged-away SKU to a form that can never collide with a
// live SKU and stays distinguishable in history.
func MangleSKU(sku string, at time.Time) string {
	return fmt.Sprintf("%s~merged~%d", sku, at.Unix())
}

// mergeLockKey builds a lock key from the sorted set of involved part ids, so
// any two merges sharing a part contend on the same key.
func mergeLockKey(tenantID string, keepPartID int64, mergePartIDs []int64) string {
	ids := append([]int64{keepPartID}, mergePartIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, 0, len(ids)+1)
	parts = append(parts, "merge:"+tenantID)
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	return strings.Join(parts, ":")
}

// overallStock rolls the per-location consolidation up to the part totals.
func overallStock(locations []models.LocationImpact) (float64, float64) {
	var qty, value float64
	for _, loc := range locations {
		qty += loc.Quantity
		value += loc.Quantity * loc.WAC
	}
	if qty == 0 {
		return 0, 0
	}
	return qty, value / qty
}

// validateOverrides restricts fieldOverrides to the checked conflict fields.
func validateOverrides(overrides map[string]any) (map[string]any, error) {
	allowed := make(map[string]struct{}, len(ConflictFields))
	for _, f := range ConflictFields {
		allowed[f] = struct{}{}
	}

	out := make(map[string]any, len(overrides))
	for field, value := range overrides {
		if _, ok := allowed[field]; !ok {
			return nil, InvalidMergeRequest("field %q cannot be overridden", field)
		}
		out[field] = value
	}
	return out, nil
}
