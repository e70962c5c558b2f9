// Package reference owns the tables holding foreign keys to parts and the
// bulk redirect operations a merge performs on them.
package reference

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"

	"github.com/Ramsey-B/thistle/pkg/appcontext"
	"github.com/Ramsey-B/thistle/pkg/database"
	"github.com/Ramsey-B/thistle/pkg/merging"
	"github.com/Ramsey-B/thistle/pkg/tracing"
)

// referenceTables is the ordered list of (table, fk column) pairs processed
// during a merge. Order matters only for determinism of error reporting; all
// updates run in one transaction.
var referenceTables = []merging.TableRef{
	{Table: "order_lines", Column: "part_id"},
	{Table: "invoice_lines", Column: "part_id"},
	{Table: "receipt_lines", Column: "part_id"},
	{Table: "price_history", Column: "part_id"},
}

// attributeTables hold part-owned attributes and stock. Their rows are
// counted for previews but move through the union operations below instead
// of a blanket redirect.
var attributeTables = []merging.TableRef{
	{Table: "part_numbers", Column: "part_id"},
	{Table: "part_applications", Column: "part_id"},
	{Table: "part_tags", Column: "part_id"},
	{Table: "inventory_levels", Column: "part_id"},
}

// Repository handles part-reference redirects and attribute unions
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new reference repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) ReferenceTables() []merging.TableRef {
	return referenceTables
}

func (r *Repository) AttributeTables() []merging.TableRef {
	return attributeTables
}

// CountTable counts the rows of ref belonging to any of partIDs.
func (r *Repository) CountTable(ctx context.Context, ref merging.TableRef, partIDs []int64) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "reference.Repository.CountTable")
	defer span.End()

	query, args, err := sqlx.In(
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IN (?) AND tenant_id = ?", ref.Table, ref.Column),
		partIDs, appcontext.GetTenantID(ctx),
	)
	if err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to build reference count query")
	}

	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(query), args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to count references in %s", ref.Table)
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to count references in %s", ref.Table))
	}

	return count, nil
}

// RedirectTable repoints the rows of ref from fromIDs to toID and returns the
// number of rows updated.
func (r *Repository) RedirectTable(ctx context.Context, ref merging.TableRef, fromIDs []int64, toID int64) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "reference.Repository.RedirectTable")
	defer span.End()

	query, args, err := sqlx.In(
		fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s IN (?) AND tenant_id = ?", ref.Table, ref.Column, ref.Column),
		toID, fromIDs, appcontext.GetTenantID(ctx),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to build redirect query for %s: %w", ref.Table, err)
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to redirect references in %s", ref.Table)
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// MergePartNumbers moves the part numbers of fromIDs onto toID, deduplicating
// by normalized value against the target's existing numbers and between the
// sources themselves.
func (r *Repository) MergePartNumbers(ctx context.Context, fromIDs []int64, toID int64) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "reference.Repository.MergePartNumbers")
	defer span.End()

	// Drop source numbers the target already has.
	query, args, err := sqlx.In(`
		DELETE FROM part_numbers
		WHERE part_id IN (?)
		  AND normalized_value IN (SELECT normalized_value FROM part_numbers WHERE part_id = ?)`,
		fromIDs, toID,
	)
	if err != nil {
		return 0, err
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to drop duplicate part numbers")
		return 0, err
	}

	// Drop duplicates between the sources, keeping the lowest id.
	query, args, err = sqlx.In(`
		DELETE FROM part_numbers a
		USING part_numbers b
		WHERE a.part_id IN (?)
		  AND b.part_id IN (?)
		  AND a.normalized_value = b.normalized_value
		  AND a.id > b.id`,
		fromIDs, fromIDs,
	)
	if err != nil {
		return 0, err
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to dedupe source part numbers")
		return 0, err
	}

	return r.moveRows(ctx, "part_numbers", fromIDs, toID)
}

// MergeApplications unions vehicle fitments, deduplicating by the
// (make, model, engine) tuple.
func (r *Repository) MergeApplications(ctx context.Context, fromIDs []int64, toID int64) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "reference.Repository.MergeApplications")
	defer span.End()

	query, args, err := sqlx.In(`
		DELETE FROM part_applications a
		WHERE a.part_id IN (?)
		  AND EXISTS (
			SELECT 1 FROM part_applications b
			WHERE b.make = a.make AND b.model = a.model AND b.engine = a.engine
			  AND (b.part_id = ? OR (b.part_id IN (?) AND b.id < a.id))
		  )`,
		fromIDs, toID, fromIDs,
	)
	if err != nil {
		return 0, err
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to dedupe part applications")
		return 0, err
	}

	return r.moveRows(ctx, "part_applications", fromIDs, toID)
}

// MergeTags unions tag sets.
func (r *Repository) MergeTags(ctx context.Context, fromIDs []int64, toID int64) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "reference.Repository.MergeTags")
	defer span.End()

	query, args, err := sqlx.In(`
		DELETE FROM part_tags a
		WHERE a.part_id IN (?)
		  AND EXISTS (
			SELECT 1 FROM part_tags b
			WHERE b.tag = a.tag
			  AND (b.part_id = ? OR (b.part_id IN (?) AND b.id < a.id))
		  )`,
		fromIDs, toID, fromIDs,
	)
	if err != nil {
		return 0, err
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to dedupe part tags")
		return 0, err
	}

	return r.moveRows(ctx, "part_tags", fromIDs, toID)
}

func (r *Repository) moveRows(ctx context.Context, table string, fromIDs []int64, toID int64) (int, error) {
	query, args, err := sqlx.In(
		fmt.Sprintf("UPDATE %s SET part_id = ? WHERE part_id IN (?)", table),
		toID, fromIDs,
	)
	if err != nil {
		return 0, err
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to move rows in %s", table)
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
