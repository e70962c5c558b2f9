// Package part persists part records and their attached collections.
package part

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/thistle/pkg/appcontext"
	"github.com/Ramsey-B/thistle/pkg/database"
	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/normalize"
	"github.com/Ramsey-B/thistle/pkg/tracing"
)

var partColumns = []string{
	"id", "tenant_id", "sku", "normalized_sku", "name", "description",
	"brand_id", "part_group_id", "cost_price", "sale_price",
	"quantity_on_hand", "is_active", "is_service", "merged_into_id",
	"created_at", "updated_at",
}

// Columns an operator may override during a merge.
var overridableColumns = map[string]struct{}{
	"name":        {},
	"description": {},
	"cost_price":  {},
	"sale_price":  {},
	"is_active":   {},
	"is_service":  {},
}

// Repository handles part persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new part repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// DB exposes the underlying database handle for transactional operations.
func (r *Repository) DB() database.DB {
	return r.db
}

// ListForMatching loads every part of the tenant with part numbers attached,
// which is the input set for duplicate detection.
func (r *Repository) ListForMatching(ctx context.Context, tenantID string) ([]models.Part, error) {
	ctx, span := tracing.StartSpan(ctx, "part.Repository.ListForMatching")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(partColumns...)
	sb.From("parts")
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("id")

	query, args := sb.Build()
	var parts []models.Part
	if err := r.db.SelectContext(ctx, &parts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list parts for matching")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list parts")
	}

	if err := r.attachPartNumbers(ctx, parts); err != nil {
		return nil, err
	}

	return parts, nil
}

// List returns a page of the tenant's parts.
func (r *Repository) List(ctx context.Context, includeInactive bool, limit, offset int) ([]models.Part, error) {
	ctx, span := tracing.StartSpan(ctx, "part.Repository.List")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(partColumns...)
	sb.From("parts")
	sb.Where(sb.Equal("tenant_id", appcontext.GetTenantID(ctx)))
	if !includeInactive {
		sb.Where(sb.Equal("is_active", true))
	}
	sb.OrderBy("id")
	sb.Limit(limit)
	sb.Offset(offset)

	query, args := sb.Build()
	var parts []models.Part
	if err := r.db.SelectContext(ctx, &parts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list parts")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list parts")
	}

	return parts, nil
}

// Get retrieves one part with its part numbers.
func (r *Repository) Get(ctx context.Context, id int64) (*models.Part, error) {
	ctx, span := tracing.StartSpan(ctx, "part.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(partColumns...)
	sb.From("parts")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", appcontext.GetTenantID(ctx)),
	)

	query, args := sb.Build()
	var part models.Part
	if err := r.db.GetContext(ctx, &part, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("part %d not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get part")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get part")
	}

	parts := []models.Part{part}
	if err := r.attachPartNumbers(ctx, parts); err != nil {
		return nil, err
	}

	return &parts[0], nil
}

// GetByIDs loads the given parts for the tenant in ctx. Missing ids are
// simply absent from the result; callers validate completeness.
func (r *Repository) GetByIDs(ctx context.Context, ids []int64) ([]models.Part, error) {
	return r.selectByIDs(ctx, ids, false)
}

// LockByIDs loads the given parts under SELECT FOR UPDATE, serializing
// overlapping merges at the row level for the rest of the transaction.
func (r *Repository) LockByIDs(ctx context.Context, ids []int64) ([]models.Part, error) {
	return r.selectByIDs(ctx, ids, true)
}

func (r *Repository) selectByIDs(ctx context.Context, ids []int64, forUpdate bool) ([]models.Part, error) {
	ctx, span := tracing.StartSpan(ctx, "part.Repository.selectByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	sb := database.NewSelectBuilder()
	sb.Select(partColumns...)
	sb.From("parts")
	sb.Where(
		sb.In("id", sqlbuilder.Flatten(ids)...),
		sb.Equal("tenant_id", appcontext.GetTenantID(ctx)),
	)
	sb.OrderBy("id")

	query, args := sb.Build()
	if forUpdate {
		query += " FOR UPDATE"
	}

	var parts []models.Part
	if err := r.db.SelectContext(ctx, &parts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load parts by ids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load parts")
	}

	return parts, nil
}

// UpdateFields applies operator-chosen scalar overrides to a part. Only the
// overridable columns are accepted.
func (r *Repository) UpdateFields(ctx context.Context, partID int64, fields map[string]any) error {
	ctx, span := tracing.StartSpan(ctx, "part.Repository.UpdateFields")
	defer span.End()

	if len(fields) == 0 {
		return nil
	}

	sb := database.NewUpdateBuilder()
	sb.Update("parts")
	assignments := []string{sb.Assign("updated_at", time.Now().UTC())}
	for column, value := range fields {
		if _, ok := overridableColumns[column]; !ok {
			return httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("column %s cannot be updated", column))
		}
		assignments = append(assignments, sb.Assign(column, value))
	}
	sb.Set(assignments...)
	sb.Where(
		sb.Equal("id", partID),
		sb.Equal("tenant_id", appcontext.GetTenantID(ctx)),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update part fields")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update part")
	}

	return nil
}

// UpdateStock replaces the part's aggregate stock and cost after inventory
// consolidation.
func (r *Repository) UpdateStock(ctx context.Context, partID int64, quantityOnHand, costPrice float64) error {
	ctx, span := tracing.StartSpan(ctx, "part.Repository.UpdateStock")
	defer span.End()

	sb := database.NewUpdateBuilder()
	sb.Update("parts")
	sb.Set(
		sb.Assign("quantity_on_hand", quantityOnHand),
		sb.Assign("cost_price", costPrice),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", partID),
		sb.Equal("tenant_id", appcontext.GetTenantID(ctx)),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update part stock")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update part stock")
	}

	return nil
}

// Deactivate marks a merged-away part inactive with its mangled SKU and a
// pointer to the surviving part.
func (r *Repository) Deactivate(ctx context.Context, partID int64, mangledSKU string, mergedIntoID int64) error {
	ctx, span := tracing.StartSpan(ctx, "part.Repository.Deactivate")
	defer span.End()

	sb := database.NewUpdateBuilder()
	sb.Update("parts")
	sb.Set(
		sb.Assign("is_active", false),
		sb.Assign("sku", mangledSKU),
		sb.Assign("normalized_sku", normalize.Normalize(mangledSKU)),
		sb.Assign("merged_into_id", mergedIntoID),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", partID),
		sb.Equal("tenant_id", appcontext.GetTenantID(ctx)),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to deactivate part")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to deactivate part")
	}

	return nil
}

func (r *Repository) attachPartNumbers(ctx context.Context, parts []models.Part) error {
	if len(parts) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(parts))
	index := make(map[int64]int, len(parts))
	for i, p := range parts {
		ids = append(ids, p.ID)
		index[p.ID] = i
	}

	sb := database.NewSelectBuilder()
	sb.Select("id", "part_id", "number_type", "value", "normalized_value")
	sb.From("part_numbers")
	sb.Where(sb.In("part_id", sqlbuilder.Flatten(ids)...))
	sb.OrderBy("id")

	query, args := sb.Build()
	var numbers []models.PartNumber
	if err := r.db.SelectContext(ctx, &numbers, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load part numbers")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to load part numbers")
	}

	for _, pn := range numbers {
		i := index[pn.PartID]
		parts[i].PartNumbers = append(parts[i].PartNumbers, pn)
	}

	return nil
}
