package merging

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/normalize"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type refRow struct {
	ID     int64
	PartID int64
}

// fakeStore is an in-memory implementation of every store interface plus the
// unit of work. WithTx snapshots the state and restores it when fn fails,
// mirroring a database rollback.
type fakeStore struct {
	parts        map[int64]models.Part
	refs         map[string][]refRow
	partNumbers  []models.PartNumber
	applications []models.PartApplication
	tags         []struct {
		PartID int64
		Tag    string
	}
	levels []models.InventoryLevel
	audits []models.MergeResult

	nextAuditID int64
	failOnStep  string
	inTx        bool
}

var refTables = []TableRef{
	{Table: "order_lines", Column: "part_id"},
	{Table: "invoice_lines", Column: "part_id"},
	{Table: "receipt_lines", Column: "part_id"},
	{Table: "price_history", Column: "part_id"},
}

var attrTables = []TableRef{
	{Table: "part_numbers", Column: "part_id"},
	{Table: "part_applications", Column: "part_id"},
	{Table: "part_tags", Column: "part_id"},
	{Table: "inventory_levels", Column: "part_id"},
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		parts:       make(map[int64]models.Part),
		refs:        make(map[string][]refRow),
		nextAuditID: 1,
	}
}

func (f *fakeStore) addPart(p models.Part) {
	f.parts[p.ID] = p
}

func (f *fakeStore) addRef(table string, id, partID int64) {
	f.refs[table] = append(f.refs[table], refRow{ID: id, PartID: partID})
}

func (f *fakeStore) snapshot() *fakeStore {
	c := newFakeStore()
	c.nextAuditID = f.nextAuditID
	c.failOnStep = f.failOnStep
	for id, p := range f.parts {
		c.parts[id] = p
	}
	for table, rows := range f.refs {
		c.refs[table] = append([]refRow(nil), rows...)
	}
	c.partNumbers = append([]models.PartNumber(nil), f.partNumbers...)
	c.applications = append([]models.PartApplication(nil), f.applications...)
	c.tags = append([]struct {
		PartID int64
		Tag    string
	}(nil), f.tags...)
	c.levels = append([]models.InventoryLevel(nil), f.levels...)
	c.audits = append([]models.MergeResult(nil), f.audits...)
	return c
}

func (f *fakeStore) restore(s *fakeStore) {
	f.parts = s.parts
	f.refs = s.refs
	f.partNumbers = s.partNumbers
	f.applications = s.applications
	f.tags = s.tags
	f.levels = s.levels
	f.audits = s.audits
	f.nextAuditID = s.nextAuditID
}

// UnitOfWork

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	before := f.snapshot()
	f.inTx = true
	err := fn(ctx)
	f.inTx = false
	if err != nil {
		f.restore(before)
		return err
	}
	return nil
}

// PartStore

func (f *fakeStore) GetByIDs(ctx context.Context, ids []int64) ([]models.Part, error) {
	out := make([]models.Part, 0, len(ids))
	for _, id := range ids {
		if p, ok := f.parts[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) LockByIDs(ctx context.Context, ids []int64) ([]models.Part, error) {
	return f.GetByIDs(ctx, ids)
}

func (f *fakeStore) UpdateFields(ctx context.Context, partID int64, fields map[string]any) error {
	p, ok := f.parts[partID]
	if !ok {
		return fmt.Errorf("part %d not found", partID)
	}
	for field, value := range fields {
		switch field {
		case "name":
			p.Name = value.(string)
		case "description":
			p.Description = value.(string)
		case "cost_price":
			p.CostPrice = value.(float64)
		case "sale_price":
			p.SalePrice = value.(float64)
		case "is_active":
			p.IsActive = value.(bool)
		case "is_service":
			p.IsService = value.(bool)
		}
	}
	f.parts[partID] = p
	return nil
}

func (f *fakeStore) UpdateStock(ctx context.Context, partID int64, quantityOnHand, costPrice float64) error {
	p, ok := f.parts[partID]
	if !ok {
		return fmt.Errorf("part %d not found", partID)
	}
	p.QuantityOnHand = quantityOnHand
	p.CostPrice = costPrice
	f.parts[partID] = p
	return nil
}

func (f *fakeStore) Deactivate(ctx context.Context, partID int64, mangledSKU string, mergedIntoID int64) error {
	p, ok := f.parts[partID]
	if !ok {
		return fmt.Errorf("part %d not found", partID)
	}
	p.IsActive = false
	p.SKU = mangledSKU
	p.MergedIntoID = &mergedIntoID
	f.parts[partID] = p
	return nil
}

// ReferenceStore

func (f *fakeStore) ReferenceTables() []TableRef {
	return refTables
}

func (f *fakeStore) AttributeTables() []TableRef {
	return attrTables
}

func (f *fakeStore) CountTable(ctx context.Context, ref TableRef, partIDs []int64) (int, error) {
	ids := idSet(partIDs)
	count := 0
	switch ref.Table {
	case "part_numbers":
		for _, pn := range f.partNumbers {
			if _, ok := ids[pn.PartID]; ok {
				count++
			}
		}
	case "part_applications":
		for _, app := range f.applications {
			if _, ok := ids[app.PartID]; ok {
				count++
			}
		}
	case "part_tags":
		for _, tag := range f.tags {
			if _, ok := ids[tag.PartID]; ok {
				count++
			}
		}
	case "inventory_levels":
		for _, lvl := range f.levels {
			if _, ok := ids[lvl.PartID]; ok {
				count++
			}
		}
	default:
		for _, row := range f.refs[ref.Table] {
			if _, ok := ids[row.PartID]; ok {
				count++
			}
		}
	}
	return count, nil
}

func (f *fakeStore) RedirectTable(ctx context.Context, ref TableRef, fromIDs []int64, toID int64) (int, error) {
	if f.failOnStep == "redirect:"+ref.Table {
		return 0, fmt.Errorf("forced failure on %s", ref.Table)
	}
	ids := idSet(fromIDs)
	moved := 0
	rows := f.refs[ref.Table]
	for i, row := range rows {
		if _, ok := ids[row.PartID]; ok {
			rows[i].PartID = toID
			moved++
		}
	}
	return moved, nil
}

func (f *fakeStore) MergePartNumbers(ctx context.Context, fromIDs []int64, toID int64) (int, error) {
	ids := idSet(fromIDs)
	existing := make(map[string]struct{})
	for _, pn := range f.partNumbers {
		if pn.PartID == toID {
			existing[normalize.Normalize(pn.Value)] = struct{}{}
		}
	}

	moved := 0
	kept := f.partNumbers[:0]
	for _, pn := range f.partNumbers {
		if _, ok := ids[pn.PartID]; !ok {
			kept = append(kept, pn)
			continue
		}
		norm := normalize.Normalize(pn.Value)
		if _, dup := existing[norm]; dup {
			continue
		}
		existing[norm] = struct{}{}
		pn.PartID = toID
		kept = append(kept, pn)
		moved++
	}
	f.partNumbers = kept
	return moved, nil
}

func (f *fakeStore) MergeApplications(ctx context.Context, fromIDs []int64, toID int64) (int, error) {
	ids := idSet(fromIDs)
	existing := make(map[string]struct{})
	for _, app := range f.applications {
		if app.PartID == toID {
			existing[app.Make+"|"+app.Model+"|"+app.Engine] = struct{}{}
		}
	}

	moved := 0
	kept := f.applications[:0]
	for _, app := range f.applications {
		if _, ok := ids[app.PartID]; !ok {
			kept = append(kept, app)
			continue
		}
		key := app.Make + "|" + app.Model + "|" + app.Engine
		if _, dup := existing[key]; dup {
			continue
		}
		existing[key] = struct{}{}
		app.PartID = toID
		kept = append(kept, app)
		moved++
	}
	f.applications = kept
	return moved, nil
}

func (f *fakeStore) MergeTags(ctx context.Context, fromIDs []int64, toID int64) (int, error) {
	ids := idSet(fromIDs)
	existing := make(map[string]struct{})
	for _, t := range f.tags {
		if t.PartID == toID {
			existing[t.Tag] = struct{}{}
		}
	}

	moved := 0
	kept := f.tags[:0]
	for _, t := range f.tags {
		if _, ok := ids[t.PartID]; !ok {
			kept = append(kept, t)
			continue
		}
		if _, dup := existing[t.Tag]; dup {
			continue
		}
		existing[t.Tag] = struct{}{}
		t.PartID = toID
		kept = append(kept, t)
		moved++
	}
	f.tags = kept
	return moved, nil
}

// InventoryStore

func (f *fakeStore) ListLevels(ctx context.Context, partIDs []int64) ([]models.InventoryLevel, error) {
	ids := idSet(partIDs)
	var out []models.InventoryLevel
	for _, lvl := range f.levels {
		if _, ok := ids[lvl.PartID]; ok {
			out = append(out, lvl)
		}
	}
	return out, nil
}

func (f *fakeStore) ReplaceLevels(ctx context.Context, keepID int64, levels []models.LocationImpact, removeIDs []int64) error {
	remove := idSet(append([]int64{keepID}, removeIDs...))
	kept := f.levels[:0]
	for _, lvl := range f.levels {
		if _, ok := remove[lvl.PartID]; !ok {
			kept = append(kept, lvl)
		}
	}
	for _, loc := range levels {
		kept = append(kept, models.InventoryLevel{
			PartID:     keepID,
			LocationID: loc.LocationID,
			Quantity:   loc.Quantity,
			UnitCost:   loc.WAC,
		})
	}
	f.levels = kept
	return nil
}

// AuditStore

func (f *fakeStore) Insert(ctx context.Context, result *models.MergeResult) error {
	if f.failOnStep == "audit" {
		return fmt.Errorf("forced audit failure")
	}
	result.ID = f.nextAuditID
	f.nextAuditID++
	f.audits = append(f.audits, *result)
	return nil
}

// Locker

type fakeLocker struct {
	keys []string
}

func (l *fakeLocker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	l.keys = append(l.keys, key)
	return fn()
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
