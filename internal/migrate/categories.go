package migrate

import (
	"context"
	"strings"

	"shopmigrate/internal/resolve"
	"shopmigrate/internal/skiplog"
	"shopmigrate/internal/writer"
)

// Legacy extraction queries. Every query carries ORDER BY so LIMIT/OFFSET
// batch windows are stable across invocations. legacyItemsBase has no ORDER
// BY; FetchByKeys appends its own WHERE/ORDER clause.
const (
	legacyItemsQuery = `SELECT id, sku, name, category, collection, stone, sizes, materials, image_paths, price, created_by FROM items ORDER BY id`
	legacyItemsBase  = `SELECT id, sku, name, category, collection, stone, sizes, materials, image_paths, price, created_by FROM items`
	legacyStockQuery = `SELECT id, sku, size, warehouse, qty FROM item_stock ORDER BY id`
	legacySetsQuery  = `SELECT id, set_code, set_name, item_sku, qty, position FROM item_sets ORDER BY id`
)

// RunCategories extracts the category and collection dictionaries from the
// flat legacy item rows. Rows without a category or collection are not
// invalid; the product simply ends up unclassified. Skip-on-duplicate.
func RunCategories(ctx context.Context, r *Runner) (*Summary, error) {
	return runPhase(ctx, r, "categories", categoriesPhase)
}

func categoriesPhase(ctx context.Context, r *Runner, s *Summary, sl *skiplog.Log) (*resolve.Resolver, error) {
	rows, err := r.Reader.FetchBatch(ctx, legacyItemsQuery, nil, r.Cfg.Limit, r.Cfg.Offset)
	if err != nil {
		return nil, err
	}
	s.Read = len(rows)

	var cats, colls []writer.Record
	seenCat := map[string]bool{}
	seenColl := map[string]bool{}
	for _, row := range rows {
		if name := row.String("category"); name != "" && !seenCat[strings.ToLower(name)] {
			seenCat[strings.ToLower(name)] = true
			cats = append(cats, dictRecord{
				table: "categories", entityType: "category",
				tenantID: r.Cfg.TenantID, name: name, legacyID: row.String("id"),
			})
		}
		if name := row.String("collection"); name != "" && !seenColl[strings.ToLower(name)] {
			seenColl[strings.ToLower(name)] = true
			colls = append(colls, dictRecord{
				table: "collections", entityType: "collection",
				tenantID: r.Cfg.TenantID, name: name, legacyID: row.String("id"),
			})
		}
	}

	for _, batch := range []struct {
		entity string
		recs   []writer.Record
	}{
		{"categories", cats},
		{"collections", colls},
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
