package migrate

import (
	"context"
	"fmt"
	"sort"

	"shopmigrate/internal/db"
	"shopmigrate/internal/grouping"
	"shopmigrate/internal/legacy"
	"shopmigrate/internal/resolve"
	"shopmigrate/internal/skiplog"
	"shopmigrate/internal/writer"
)

// keyChunkSize bounds IN (...) filters when re-fetching legacy rows for the
// SKUs an earlier phase wrote; conservative enough for every source driver.
const keyChunkSize = 500

// attrValueRecord attaches the merged display value of one attribute type to
// a product. Update-in-place: re-runs refresh the value.
type attrValueRecord struct {
	productID int64
	attrType  string
	value     string
	legacyID  string
}

func (a attrValueRecord) EntityType() string { return "attribute_value" }
func (a attrValueRecord) NaturalKey() string {
	return fmt.Sprintf("%d%s%s", a.productID, attrTypeSep, a.attrType)
}
func (a attrValueRecord) LegacyID() string { return a.legacyID }

func (a attrValueRecord) Apply(ctx context.Context, tx db.Tx) (int64, writer.Outcome, error) {
	var id int64
	err := tx.QueryRow(ctx,
		`SELECT id FROM product_attribute_values WHERE product_id = $1 AND attr_type = $2`,
		a.productID, a.attrType).Scan(&id)
	if err == nil {
		if err := tx.Exec(ctx, `UPDATE product_attribute_values SET value = $1 WHERE id = $2`,
			a.value, id); err != nil {
			return 0, 0, err
		}
		return id, writer.Updated, nil
	}
	if !db.IsNoRows(err) {
		return 0, 0, err
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO product_attribute_values (product_id, attr_type, value) VALUES ($1, $2, $3) RETURNING id`,
		a.productID, a.attrType, a.value).Scan(&id)
	if err != nil {
		return 0, 0, err
	}
	return id, writer.Inserted, nil
}

// productMaterialRecord links a product to a material. Skip-on-duplicate.
type productMaterialRecord struct {
	productID  int64
	materialID int64
	legacyID   string
}

func (m productMaterialRecord) EntityType() string { return "product_material" }
func (m productMaterialRecord) NaturalKey() string {
	return fmt.Sprintf("%d%s%d", m.productID, attrTypeSep, m.materialID)
}
func (m productMaterialRecord) LegacyID() string { return m.legacyID }

func (m productMaterialRecord) Apply(ctx context.Context, tx db.Tx) (int64, writer.Outcome, error) {
	var id int64
	err := tx.QueryRow(ctx,
		`SELECT id FROM product_materials WHERE product_id = $1 AND material_id = $2`,
		m.productID, m.materialID).Scan(&id)
	if err == nil {
		return id, writer.Skipped, nil
	}
	if !db.IsNoRows(err) {
		return 0, 0, err
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO product_materials (product_id, material_id) VALUES ($1, $2) RETURNING id`,
		m.productID, m.materialID).Scan(&id)
	if err != nil {
		return 0, 0, err
	}
	return id, writer.Inserted, nil
}

// RunAttributeValues resolves each product's delimited stone/size fields
// against the attribute dictionary, writes the merged display values, and
// links products to materials. Requires the products phase's correlation
// artifact.
func RunAttributeValues(ctx context.Context, r *Runner) (*Summary, error) {
	return runPhase(ctx, r, "attribute-values", attributeValuesPhase)
}

func attributeValuesPhase(ctx context.Context, r *Runner, s *Summary, sl *skiplog.Log) (*resolve.Resolver, error) {
	prodCorr, err := r.Corr.Load("products")
	if err != nil {
		return nil, err
	}
	resolver, err := r.buildResolver(ctx, "attributes", "materials")
	if err != nil {
		return nil, err
	}

	rows, err := fetchItemsForSKUs(ctx, r, prodCorr)
	if err != nil {
		return resolver, err
	}
	s.Read = len(rows)

	var avRecs, matRecs []writer.Record
	seenAttr := map[string]bool{}
	seenMat := map[string]bool{}
	for _, row := range rows {
		sku := row.String("sku")
		pid, ok := prodCorr[sku]
		if !ok {
			sl.Add("unknown_product", "attribute_value", row.String("id"), sku, "")
			continue
		}
		for _, ac := range attrColumns {
			av, ok := resolver.ResolveAttributeValues("attributes", ac.attrType, row.String(ac.column))
			if !ok {
				continue
			}
			k := fmt.Sprintf("%d|%s", pid, ac.attrType)
			if seenAttr[k] {
				continue
			}
			seenAttr[k] = true
			avRecs = append(avRecs, attrValueRecord{
				productID: pid, attrType: ac.attrType, value: av.Display,
				legacyID: row.String("id"),
			})
		}
		for _, name := range grouping.SplitMultiValue(row.String("materials")) {
			mid := resolver.Resolve("materials", name)
			if mid == nil {
				continue
			}
			k := fmt.Sprintf("%d|%d", pid, *mid)
			if seenMat[k] {
				continue
			}
			seenMat[k] = true
			matRecs = append(matRecs, productMaterialRecord{
				productID: pid, materialID: *mid, legacyID: row.String("id"),
			})
		}
	}

	for _, batch := range []struct {
		entity string
		recs   []writer.Record
	}{
		{"attribute_values", avRecs},
		{"product_materials", matRecs},
	} {
		res, err := r.Writer.WriteBatch(ctx, batch.recs)
		if err != nil {
			return resolver, err
		}
		s.addResult(res)
		if err := r.Corr.Persist(batch.entity, r.RunID, res.Correlations); err != nil {
			return resolver, err
		}
	}
	return resolver, nil
}

// fetchItemsForSKUs re-reads legacy item rows for the SKUs present in the
// products correlation map, chunked to keep IN (...) lists bounded. Variant
// SKUs in the map simply match no legacy row.
func fetchItemsForSKUs(ctx context.Context, r *Runner, prodCorr map[string]int64) ([]legacy.Row, error) {
	skus := make([]string, 0, len(prodCorr))
	for sku := range prodCorr {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	var rows []legacy.Row
	for start := 0; start < len(skus); start += keyChunkSize {
		end := start + keyChunkSize
		if end > len(skus) {
			end = len(skus)
		}
		batch, err := r.Reader.FetchByKeys(ctx, legacyItemsBase, "sku", skus[start:end])
		if err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
	}
	return rows, nil
}
