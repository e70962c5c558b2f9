package merging

import (
	"context"
	"database/sql"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/thistle/pkg/database"
	"github.com/Ramsey-B/thistle/pkg/models"
)

// PartStore is the part-table surface the merge engine needs. Implementations
// resolve the tenant from ctx.
type PartStore interface {
	GetByIDs(ctx context.Context, ids []int64) ([]models.Part, error)
	// LockByIDs loads the same rows under SELECT FOR UPDATE so overlapping
	// merges serialize at the database even if the distributed lock is lost.
	LockByIDs(ctx context.Context, ids []int64) ([]models.Part, error)
	UpdateFields(ctx context.Context, partID int64, fields map[string]any) error
	UpdateStock(ctx context.Context, partID int64, quantityOnHand, costPrice float64) error
	Deactivate(ctx context.Context, partID int64, mangledSKU string, mergedIntoID int64) error
}

// TableRef names one table holding a foreign key to parts.
type TableRef struct {
	Table  string
	Column string
}

// priceHistoryTable is redirected only when the merge rules preserve history;
// otherwise its rows stay with the deactivated source part.
const priceHistoryTable = "price_history"

// ReferenceStore redirects and counts rows in every table holding a part
// foreign key. ReferenceTables returns the ordered list of (table, column)
// pairs; redirects are processed in that order inside one transaction.
// AttributeTables lists the part-owned attribute and stock tables, which are
// counted for previews but move through the dedicated merge operations.
type ReferenceStore interface {
	ReferenceTables() []TableRef
	AttributeTables() []TableRef
	CountTable(ctx context.Context, ref TableRef, partIDs []int64) (int, error)
	RedirectTable(ctx context.Context, ref TableRef, fromIDs []int64, toID int64) (int, error)
	MergePartNumbers(ctx context.Context, fromIDs []int64, toID int64) (int, error)
	MergeApplications(ctx context.Context, fromIDs []int64, toID int64) (int, error)
	MergeTags(ctx context.Context, fromIDs []int64, toID int64) (int, error)
}

// InventoryStore reads and rewrites per-location stock rows.
type InventoryStore interface {
	ListLevels(ctx context.Context, partIDs []int64) ([]models.InventoryLevel, error)
	// ReplaceLevels writes the consolidated rows for keepID and removes the
	// stock rows of removeIDs.
	ReplaceLevels(ctx context.Context, keepID int64, levels []models.LocationImpact, removeIDs []int64) error
}

// AuditStore persists completed-merge records.
type AuditStore interface {
	Insert(ctx context.Context, result *models.MergeResult) error
}

// UnitOfWork runs fn inside one transaction; fn receives a context that
// carries the transaction into every store call.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker serializes merges touching overlapping part ids.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

// SQLUnitOfWork implements UnitOfWork over the shared database handle.
type SQLUnitOfWork struct {
	db     database.DB
	logger ectologger.Logger
}

func NewSQLUnitOfWork(db database.DB, logger ectologger.Logger) *SQLUnitOfWork {
	return &SQLUnitOfWork{db: db, logger: logger}
}

func (u *SQLUnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctxTx, tx, err := u.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctxTx)
	}()

	if err := fn(ctxTx); err != nil {
		return err
	}

	return tx.Commit(ctxTx)
}
