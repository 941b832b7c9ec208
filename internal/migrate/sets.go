package migrate

import (
	"context"
	"fmt"
	"strings"

	"shopmigrate/internal/db"
	"shopmigrate/internal/resolve"
	"shopmigrate/internal/skiplog"
	"shopmigrate/internal/writer"
)

// setRecord creates one product set. Skip-on-duplicate by (tenant, code).
type setRecord struct {
	tenantID int64
	code     string
	name     string
	legacyID string
}

func (p setRecord) EntityType() string { return "product_set" }
func (p setRecord) NaturalKey() string { return p.code }
func (p setRecord) LegacyID() string   { return p.legacyID }

func (p setRecord) Apply(ctx context.Context, tx db.Tx) (int64, writer.Outcome, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM product_sets WHERE tenant_id = $1 AND code = $2`,
		p.tenantID, p.code).Scan(&id)
	if err == nil {
		return id, writer.Skipped, nil
	}
	if !db.IsNoRows(err) {
		return 0, 0, err
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO product_sets (tenant_id, code, name) VALUES ($1, $2, $3) RETURNING id`,
		p.tenantID, p.code, p.name).Scan(&id)
	if err != nil {
		return 0, 0, err
	}
	return id, writer.Inserted, nil
}

// setItemRecord puts one product into a set. Update-in-place on quantity and
// sort order. The set is resolved by code inside the transaction; sets are
// written in an earlier batch of the same phase.
type setItemRecord struct {
	tenantID  int64
	setCode   string
	productID int64
	quantity  int64
	sortOrder int
	legacyID  string
}

func (i setItemRecord) EntityType() string { return "set_item" }
func (i setItemRecord) NaturalKey() string {
	return fmt.Sprintf("%s|%d", i.setCode, i.productID)
}
func (i setItemRecord) LegacyID() string { return i.legacyID }

func (i setItemRecord) Apply(ctx context.Context, tx db.Tx) (int64, writer.Outcome, error) {
	var setID int64
	err := tx.QueryRow(ctx, `SELECT id FROM product_sets WHERE tenant_id = $1 AND code = $2`,
		i.tenantID, i.setCode).Scan(&setID)
	if err != nil {
		if db.IsNoRows(err) {
			return 0, 0, fmt.Errorf("product set %q not found", i.setCode)
		}
		return 0, 0, err
	}

	var id int64
	err = tx.QueryRow(ctx, `SELECT id FROM set_items WHERE set_id = $1 AND product_id = $2`,
		setID, i.productID).Scan(&id)
	if err == nil {
		if err := tx.Exec(ctx, `UPDATE set_items SET quantity = $1, sort_order = $2 WHERE id = $3`,
			i.quantity, i.sortOrder, id); err != nil {
			return 0, 0, err
		}
		return id, writer.Updated, nil
	}
	if !db.IsNoRows(err) {
		return 0, 0, err
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO set_items (set_id, product_id, quantity, sort_order) VALUES ($1, $2, $3, $4) RETURNING id`,
		setID, i.productID, i.quantity, i.sortOrder).Scan(&id)
	if err != nil {
		return 0, 0, err
	}
	return id, writer.Inserted, nil
}

// RunSets migrates legacy product sets and their member rows. Requires the
// products correlation artifact.
func RunSets(ctx context.Context, r *Runner) (*Summary, error) {
	return runPhase(ctx, r, "sets", setsPhase)
}

func setsPhase(ctx context.Context, r *Runner, s *Summary, sl *skiplog.Log) (*resolve.Resolver, error) {
	prodCorr, err := r.Corr.Load("products")
	if err != nil {
		return nil, err
	}
	rows, err := r.Reader.FetchBatch(ctx, legacySetsQuery, nil, r.Cfg.Limit, r.Cfg.Offset)
	if err != nil {
		return nil, err
	}
	s.Read = len(rows)

	var setRecs, itemRecs []writer.Record
	seenSet := map[string]bool{}
	for _, row := range rows {
		code := row.String("set_code")
		if code == "" {
			sl.Add("missing_set_code", "product_set", row.String("id"), "", "set row has no code")
			continue
		}
		if !seenSet[strings.ToLower(code)] {
			seenSet[strings.ToLower(code)] = true
			setRecs = append(setRecs, setRecord{
				tenantID: r.Cfg.TenantID, code: code,
				name: row.String("set_name"), legacyID: row.String("id"),
			})
		}
		sku := row.String("item_sku")
		pid, ok := prodCorr[sku]
		if !ok {
			sl.Add("unknown_product", "set_item", row.String("id"), sku, "")
			continue
		}
		itemRecs = append(itemRecs, setItemRecord{
			tenantID:  r.Cfg.TenantID,
			setCode:   code,
			productID: pid,
			quantity:  row.Int64("qty"),
			sortOrder: int(row.Int64("position")),
			legacyID:  row.String("id"),
		})
	}

	for _, batch := range []struct {
		entity string
		recs   []writer.Record
	}{
		{"product_sets", setRecs},
		{"set_items", itemRecs},
	} {
		res, err := r.Writer.WriteBatch(ctx, batch.recs)
		if err != nil {
			return nil, err
		}
		s.addResult(res)
		if err := r.Corr.Persist(batch.entity, r.RunID, res.Correlations); err != nil {
			return nil, err
		}
	}
	return nil, nil
}
