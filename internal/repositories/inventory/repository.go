// Package inventory persists per-location stock rows.
package inventory

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"

	"github.com/Ramsey-B/thistle/pkg/appcontext"
	"github.com/Ramsey-B/thistle/pkg/database"
	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/tracing"
)

// Repository handles inventory level persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new inventory repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ListLevels returns the stock rows of the given parts.
func (r *Repository) ListLevels(ctx context.Context, partIDs []int64) ([]models.InventoryLevel, error) {
	ctx, span := tracing.StartSpan(ctx, "inventory.Repository.ListLevels")
	defer span.End()

	if len(partIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT part_id, location_id, quantity, unit_cost
		FROM inventory_levels
		WHERE part_id IN (?) AND tenant_id = ?
		ORDER BY part_id, location_id`,
		partIDs, appcontext.GetTenantID(ctx),
	)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to build inventory query")
	}

	var levels []models.InventoryLevel
	if err := r.db.SelectContext(ctx, &levels, r.db.Rebind(query), args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list inventory levels")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list inventory levels")
	}

	return levels, nil
}

// ReplaceLevels deletes the stock rows of keepID and removeIDs, then writes
// the consolidated rows for keepID. Runs inside the caller's transaction.
func (r *Repository) ReplaceLevels(ctx context.Context, keepID int64, levels []models.LocationImpact, removeIDs []int64) error {
	ctx, span := tracing.StartSpan(ctx, "inventory.Repository.ReplaceLevels")
	defer span.End()

	tenantID := appcontext.GetTenantID(ctx)

	allIDs := append([]int64{keepID}, removeIDs...)
	query, args, err := sqlx.In(
		"DELETE FROM inventory_levels WHERE part_id IN (?) AND tenant_id = ?",
		allIDs, tenantID,
	)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to clear inventory levels")
		return err
	}

	if len(levels) == 0 {
		return nil
	}

	sb := database.NewInsertBuilder()
	sb.InsertInto("inventory_levels")
	sb.Cols("tenant_id", "part_id", "location_id", "quantity", "unit_cost")
	for _, loc := range levels {
		sb.Values(tenantID, keepID, loc.LocationID, loc.Quantity, loc.WAC)
	}

	insert, insertArgs := sb.Build()
	if _, err := r.db.ExecContext(ctx, insert, insertArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to write consolidated inventory levels")
		return err
	}

	return nil
}
