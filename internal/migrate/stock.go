package migrate

import (
	"context"
	"fmt"

	"shopmigrate/internal/db"
	"shopmigrate/internal/resolve"
	"shopmigrate/internal/skiplog"
	"shopmigrate/internal/variant"
	"shopmigrate/internal/writer"
)

// stockRecord sets the stock level of one product at one warehouse.
// Update-in-place: quantities change between runs and the latest legacy
// value wins.
type stockRecord struct {
	productID   int64
	warehouseID int64
	quantity    int64
	naturalKey  string // "<sku>@<warehouse code>", for reporting
	legacyID    string
}

func (r stockRecord) EntityType() string { return "stock_level" }
func (r stockRecord) NaturalKey() string { return r.naturalKey }
func (r stockRecord) LegacyID() string   { return r.legacyID }

func (r stockRecord) Apply(ctx context.Context, tx db.Tx) (int64, writer.Outcome, error) {
	var id int64
	err := tx.QueryRow(ctx,
		`SELECT id FROM stock_levels WHERE product_id = $1 AND warehouse_id = $2`,
		r.productID, r.warehouseID).Scan(&id)
	if err == nil {
		if err := tx.Exec(ctx, `UPDATE stock_levels SET quantity = $1 WHERE id = $2`,
			r.quantity, id); err != nil {
			return 0, 0, err
		}
		return id, writer.Updated, nil
	}
	if !db.IsNoRows(err) {
		return 0, 0, err
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO stock_levels (product_id, warehouse_id, quantity) VALUES ($1, $2, $3) RETURNING id`,
		r.productID, r.warehouseID, r.quantity).Scan(&id)
	if err != nil {
		return 0, 0, err
	}
	return id, writer.Inserted, nil
}

// RunStock loads legacy per-warehouse stock rows onto the migrated products.
// A stock row carrying a size maps to the synthesized variant key; sizeless
// rows (and sizes the products phase never saw) fall back to the parent SKU.
// Requires the products correlation artifact and a seeded warehouses table.
func RunStock(ctx context.Context, r *Runner) (*Summary, error) {
	return runPhase(ctx, r, "stock", stockPhase)
}

func stockPhase(ctx context.Context, r *Runner, s *Summary, sl *skiplog.Log) (*resolve.Resolver, error) {
	prodCorr, err := r.Corr.Load("products")
	if err != nil {
		return nil, err
	}
	resolver, err := r.buildResolver(ctx, "warehouses")
	if err != nil {
		return nil, err
	}

	rows, err := r.Reader.FetchBatch(ctx, legacyStockQuery, nil, r.Cfg.Limit, r.Cfg.Offset)
	if err != nil {
		return resolver, err
	}
	s.Read = len(rows)

	synth := variant.New(r.Cfg.TerminalTokens())
	var recs []writer.Record
	for _, row := range rows {
		sku := row.String("sku")
		if sku == "" {
			sl.Add("missing_sku", "stock_level", row.String("id"), "", "stock row has no sku")
			continue
		}
		key := sku
		if size := row.String("size"); size != "" {
			key, _ = synth.ChildKey(sku, size)
		}
		pid, ok := prodCorr[key]
		if !ok {
			pid, ok = prodCorr[sku]
		}
		if !ok {
			sl.Add("unknown_product", "stock_level", row.String("id"), key, "")
			continue
		}
		wid := resolver.Resolve("warehouses", row.String("warehouse"))
		if wid == nil {
			sl.Add("unknown_warehouse", "stock_level", row.String("id"), key,
				"warehouse "+row.String("warehouse"))
			continue
		}
		recs = append(recs, stockRecord{
			productID:   pid,
			warehouseID: *wid,
			quantity:    row.Int64("qty"),
			naturalKey:  fmt.Sprintf("%s@%s", key, row.String("warehouse")),
			legacyID:    row.String("id"),
		})
	}

	res, err := r.Writer.WriteBatch(ctx, recs)
	if err != nil {
		return resolver, err
	}
	s.addResult(res)
	if err := r.Corr.Persist("stock_levels", r.RunID, res.Correlations); err != nil {
		return resolver, err
	}
	return resolver, nil
}
