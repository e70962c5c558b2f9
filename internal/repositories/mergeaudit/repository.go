// Package mergeaudit persists the immutable audit rows of completed merges.
package mergeaudit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/thistle/pkg/appcontext"
	"github.com/Ramsey-B/thistle/pkg/database"
	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/tracing"
)

var auditColumns = []string{
	"id", "tenant_id", "target_part_id", "source_part_ids",
	"rows_updated", "operator_id", "notes", "created_at",
}

// Repository handles merge audit persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new merge audit repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Insert writes one audit row and fills in the generated id.
func (r *Repository) Insert(ctx context.Context, result *models.MergeResult) error {
	ctx, span := tracing.StartSpan(ctx, "mergeaudit.Repository.Insert")
	defer span.End()

	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	sb := database.NewInsertBuilder()
	sb.InsertInto("merge_audit")
	sb.Cols("tenant_id", "target_part_id", "source_part_ids", "rows_updated", "operator_id", "notes", "created_at")
	sb.Values(result.TenantID, result.TargetPartID, result.SourcePartIDs, result.RowsUpdated, result.OperatorID, result.Notes, result.CreatedAt)

	query, args := sb.Build()
	query += " RETURNING id"

	if err := r.db.GetContext(ctx, &result.ID, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to insert merge audit row")
		return err
	}

	return nil
}

// List returns the tenant's merges, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "mergeaudit.Repository.List")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(auditColumns...)
	sb.From("merge_audit")
	sb.Where(sb.Equal("tenant_id", appcontext.GetTenantID(ctx)))
	sb.OrderBy("created_at DESC", "id DESC")
	sb.Limit(limit)
	sb.Offset(offset)

	query, args := sb.Build()
	var results []models.MergeResult
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list merge audits")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list merges")
	}

	return results, nil
}

// Get returns one merge audit row.
func (r *Repository) Get(ctx context.Context, id int64) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "mergeaudit.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(auditColumns...)
	sb.From("merge_audit")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", appcontext.GetTenantID(ctx)),
	)

	query, args := sb.Build()
	var result models.MergeResult
	if err := r.db.GetContext(ctx, &result, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("merge %d not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get merge audit")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merge")
	}

	return &result, nil
}
