package migrate

import (
	"context"
	"fmt"

	"shopmigrate/internal/db"
	"shopmigrate/internal/grouping"
	"shopmigrate/internal/legacy"
	"shopmigrate/internal/resolve"
	"shopmigrate/internal/skiplog"
	"shopmigrate/internal/variant"
	"shopmigrate/internal/writer"
)

// Product type discriminator values in the target schema. A product with a
// variant axis is typed "variant" (it owns variants); its synthesized
// children are "variant_item" rows reached through the link table.
const (
	productTypeSimple = "simple"       // no variant axis
	productTypeParent = "variant"      // carries variants
	productTypeChild  = "variant_item" // synthesized child, linked to a parent
)

// productRecord is a canonical (parent or simple) product. Skip-on-duplicate
// by (tenant, sku): a re-run never mutates an existing product.
type productRecord struct {
	tenantID    int64
	sku         string
	name        string
	productType string
	legacyID    string

	categoryID   *int64
	collectionID *int64
	createdBy    *int64
	price        *float64
}

func (p productRecord) EntityType() string { return "product" }
func (p productRecord) NaturalKey() string { return p.sku }
func (p productRecord) LegacyID() string   { return p.legacyID }

func (p productRecord) Apply(ctx context.Context, tx db.Tx) (int64, writer.Outcome, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM products WHERE tenant_id = $1 AND sku = $2`,
		p.tenantID, p.sku).Scan(&id)
	if err == nil {
		return id, writer.Skipped, nil
	}
	if !db.IsNoRows(err) {
		return 0, 0, err
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO products (tenant_id, sku, name, product_type, category_id, collection_id, created_by, price)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		p.tenantID, p.sku, p.name, p.productType, p.categoryID, p.collectionID, p.createdBy, p.price).Scan(&id)
	if err != nil {
		return 0, 0, err
	}
	return id, writer.Inserted, nil
}

// variantRecord is a synthesized child product plus its link row. It resolves
// the parent inside the batch transaction, so a parent that failed its own
// savepoint cascades into a per-record failure here rather than an orphan.
type variantRecord struct {
	tenantID  int64
	parentSKU string
	sku       string
	name      string
	sortOrder int
	legacyID  string
	price     *float64
}

func (v variantRecord) EntityType() string { return "variant" }
func (v variantRecord) NaturalKey() string { return v.sku }
func (v variantRecord) LegacyID() string   { return v.legacyID }

func (v variantRecord) Apply(ctx context.Context, tx db.Tx) (int64, writer.Outcome, error) {
	var parentID int64
	err := tx.QueryRow(ctx, `SELECT id FROM products WHERE tenant_id = $1 AND sku = $2`,
		v.tenantID, v.parentSKU).Scan(&parentID)
	if err != nil {
		if db.IsNoRows(err) {
			return 0, 0, fmt.Errorf("parent product %q not found", v.parentSKU)
		}
		return 0, 0, err
	}

	var id int64
	err = tx.QueryRow(ctx, `SELECT id FROM products WHERE tenant_id = $1 AND sku = $2`,
		v.tenantID, v.sku).Scan(&id)
	if err == nil {
		return id, writer.Skipped, nil
	}
	if !db.IsNoRows(err) {
		return 0, 0, err
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO products (tenant_id, sku, name, product_type, price)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		v.tenantID, v.sku, v.name, productTypeChild, v.price).Scan(&id)
	if err != nil {
		return 0, 0, err
	}
	if err := tx.Exec(ctx,
		`INSERT INTO product_variants (parent_id, variant_id, sort_order) VALUES ($1, $2, $3)`,
		parentID, id, v.sortOrder); err != nil {
		return 0, 0, err
	}
	return id, writer.Inserted, nil
}

// RunProducts clusters legacy item rows into canonical products, synthesizes
// variant children from the size axis, and writes parents, children, and link
// rows in one batch. The correlation artifact maps every written SKU (parents
// and variants) to its target ID for the downstream phases.
func RunProducts(ctx context.Context, r *Runner) (*Summary, error) {
	return runPhase(ctx, r, "products", productsPhase)
}

func productsPhase(ctx context.Context, r *Runner, s *Summary, sl *skiplog.Log) (*resolve.Resolver, error) {
	strategy, err := grouping.ParseStrategy(r.Cfg.Strategy)
	if err != nil {
		return nil, err
	}
	resolver, err := r.buildResolver(ctx, "categories", "collections", "users")
	if err != nil {
		return nil, err
	}

	rows, err := r.Reader.FetchBatch(ctx, legacyItemsQuery, nil, r.Cfg.Limit, r.Cfg.Offset)
	if err != nil {
		return resolver, err
	}
	s.Read = len(rows)

	var valid []legacy.Row
	for _, row := range rows {
		switch {
		case row.Empty("sku"):
			sl.Add("missing_sku", "product", row.String("id"), "", "row has no sku")
		case row.Empty("name"):
			sl.Add("missing_name", "product", row.String("id"), row.String("sku"), "row has no name")
		default:
			valid = append(valid, row)
		}
	}

	groups := grouping.GroupRows(grouping.Config{
		Strategy:         strategy,
		KeyColumn:        "sku",
		NameColumn:       "name",
		SecondaryColumn:  "stone",
		CategoryColumn:   "category",
		CollectionColumn: "collection",
		SentinelCategory: r.Cfg.SentinelCategory,
		AxisColumns:      []string{"sizes"},
	}, valid)

	synth := variant.New(r.Cfg.TerminalTokens())
	var recs []writer.Record
	for _, g := range groups {
		rep := g.Representative()
		parentSKU := rep.String("sku")
		base, _ := grouping.SplitBaseName(rep.String("name"))
		price := nullablePrice(rep.String("price"))

		ptype := productTypeSimple
		if len(g.Axis) > 0 {
			ptype = productTypeParent
		}
		recs = append(recs, productRecord{
			tenantID:     r.Cfg.TenantID,
			sku:          parentSKU,
			name:         base,
			productType:  ptype,
			legacyID:     rep.String("id"),
			categoryID:   resolver.Resolve("categories", rep.String("category")),
			collectionID: resolver.Resolve("collections", rep.String("collection")),
			createdBy:    resolver.Resolve("users", rep.String("created_by")),
			price:        price,
		})

		for _, v := range synth.Synthesize(parentSKU, g.Axis) {
			if v.Collision {
				// Truncation made this key equal to an earlier sibling's.
				// Writing it would silently merge two variants, so it is
				// reported instead.
				sl.Add("truncated_key_collision", "variant", rep.String("id"), v.NaturalKey,
					"axis value "+v.AxisValue)
				continue
			}
			recs = append(recs, variantRecord{
				tenantID:  r.Cfg.TenantID,
				parentSKU: parentSKU,
				sku:       v.NaturalKey,
				name:      base + " - " + v.AxisValue,
				sortOrder: v.SortOrder,
				legacyID:  rep.String("id"),
				price:     price,
			})
		}
	}

	res, err := r.Writer.WriteBatch(ctx, recs)
	if err != nil {
		return resolver, err
	}
	s.addResult(res)
	if err := r.Corr.Persist("products", r.RunID, res.Correlations); err != nil {
		return resolver, err
	}
	return resolver, nil
}
