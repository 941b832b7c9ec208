package migrate

import (
	"context"
	"fmt"

	"shopmigrate/internal/db"
	"shopmigrate/internal/grouping"
	"shopmigrate/internal/resolve"
	"shopmigrate/internal/skiplog"
	"shopmigrate/internal/writer"
)

// imageRecord attaches one image path to a product. Skip-on-duplicate by
// (product, path); sort order is fixed at first import.
type imageRecord struct {
	productID int64
	path      string
	sortOrder int
	legacyID  string
}

func (i imageRecord) EntityType() string { return "image" }
func (i imageRecord) NaturalKey() string { return fmt.Sprintf("%d|%s", i.productID, i.path) }
func (i imageRecord) LegacyID() string   { return i.legacyID }

func (i imageRecord) Apply(ctx context.Context, tx db.Tx) (int64, writer.Outcome, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM images WHERE product_id = $1 AND path = $2`,
		i.productID, i.path).Scan(&id)
	if err == nil {
		return id, writer.Skipped, nil
	}
	if !db.IsNoRows(err) {
		return 0, 0, err
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO images (product_id, path, sort_order) VALUES ($1, $2, $3) RETURNING id`,
		i.productID, i.path, i.sortOrder).Scan(&id)
	if err != nil {
		return 0, 0, err
	}
	return id, writer.Inserted, nil
}

// RunImages attaches the delimited legacy image paths to their products in
// field order. Requires the products correlation artifact.
func RunImages(ctx context.Context, r *Runner) (*Summary, error) {
	return runPhase(ctx, r, "images", imagesPhase)
}

func imagesPhase(ctx context.Context, r *Runner, s *Summary, sl *skiplog.Log) (*resolve.Resolver, error) {
	prodCorr, err := r.Corr.Load("products")
	if err != nil {
		return nil, err
	}
	rows, err := r.Reader.FetchBatch(ctx, legacyItemsQuery, nil, r.Cfg.Limit, r.Cfg.Offset)
	if err != nil {
		return nil, err
	}
	s.Read = len(rows)

	var recs []writer.Record
	seen := map[string]bool{}
	for _, row := range rows {
		paths := grouping.SplitMultiValue(row.String("image_paths"))
		if len(paths) == 0 {
			continue
		}
		sku := row.String("sku")
		pid, ok := prodCorr[sku]
		if !ok {
			sl.Add("unknown_product", "image", row.String("id"), sku, "")
			continue
		}
		for n, p := range paths {
			k := fmt.Sprintf("%d|%s", pid, p)
			if seen[k] {
				continue
			}
			seen[k] = true
			recs = append(recs, imageRecord{
				productID: pid, path: p, sortOrder: n + 1, legacyID: row.String("id"),
			})
		}
	}

	res, err := r.Writer.WriteBatch(ctx, recs)
	if err != nil {
		return nil, err
	}
	s.addResult(res)
	if err := r.Corr.Persist("images", r.RunID, res.Correlations); err != nil {
		return nil, err
	}
	return nil, nil
}
