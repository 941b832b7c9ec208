package migrate

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopmigrate/internal/config"
	"shopmigrate/internal/db"
)

// newTestRunner wires a Runner against two in-memory sqlite stores (shared
// cache, so the Runner's connections and the index factory's see the same
// data) with the target schema created and dimension tables seeded.
func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	ctx := context.Background()
	cfg := &config.Config{
		SourceDriver:     "sqlite",
		SourceDSN:        "file:" + t.Name() + "_src?mode=memory&cache=shared",
		TargetDriver:     "sqlite",
		TargetDSN:        "file:" + t.Name() + "_tgt?mode=memory&cache=shared",
		TenantID:         1,
		Strategy:         "basename",
		SentinelCategory: "Wedding rings",
		Terminals:        "made to measure",
		ArtifactsDir:     filepath.Join(t.TempDir(), "artifacts"),
		SkippedDir:       filepath.Join(t.TempDir(), "skipped"),
	}
	r, err := NewRunner(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close(ctx) })

	require.NoError(t, EnsureTargetSchema(ctx, r.Target, "sqlite"))
	createLegacySchema(ctx, t, r.Source)
	seedDimensions(ctx, t, r.Target)
	return r
}

func createLegacySchema(ctx context.Context, t *testing.T, src db.DB) {
	t.Helper()
	for _, stmt := range []string{
		`CREATE TABLE items (
			id INTEGER PRIMARY KEY, sku TEXT, name TEXT, category TEXT,
			collection TEXT, stone TEXT, sizes TEXT, materials TEXT,
			image_paths TEXT, price TEXT, created_by TEXT
		)`,
		`CREATE TABLE item_stock (id INTEGER PRIMARY KEY, sku TEXT, size TEXT, warehouse TEXT, qty INTEGER)`,
		`CREATE TABLE item_sets (id INTEGER PRIMARY KEY, set_code TEXT, set_name TEXT, item_sku TEXT, qty INTEGER, position INTEGER)`,
	} {
		require.NoError(t, src.Exec(ctx, stmt))
	}
}

func seedDimensions(ctx context.Context, t *testing.T, tgt db.DB) {
	t.Helper()
	require.NoError(t, tgt.Exec(ctx,
		`INSERT INTO tenants (code, name) VALUES ($1, $2)`, "shop", "Jewelry Shop"))
	require.NoError(t, tgt.Exec(ctx,
		`INSERT INTO users (tenant_id, name, email) VALUES ($1, $2, $3)`, 1, "admin", "admin@example.com"))
	require.NoError(t, tgt.Exec(ctx,
		`INSERT INTO warehouses (tenant_id, code, name) VALUES ($1, $2, $3)`, 1, "PRG", "Prague"))
}

func insertItem(ctx context.Context, t *testing.T, src db.DB, id int, sku, name, category, collection, stone, sizes, materials, images, price, createdBy string) {
	t.Helper()
	require.NoError(t, src.Exec(ctx,
		`INSERT INTO items (id, sku, name, category, collection, stone, sizes, materials, image_paths, price, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, sku, name, category, collection, stone, sizes, materials, images, price, createdBy))
}

// seedLegacyFixture loads the canonical scenario: two rows of one bracelet
// that differ only in size, one standalone ring with unresolvable references,
// and one row without a SKU.
func seedLegacyFixture(ctx context.Context, t *testing.T, src db.DB) {
	t.Helper()
	insertItem(ctx, t, src, 1, "B1", "Bracelet A - 6", "Bracelets", "Classic", "Onyx", "6",
		"gold|silver", "img/b1-a.jpg|img/b1-b.jpg", "1200", "admin")
	insertItem(ctx, t, src, 2, "B1", "Bracelet A - 7", "Bracelets", "Classic", "Onyx", "7",
		"gold", "", "1200", "admin")
	insertItem(ctx, t, src, 3, "R9", "Ring Solo", "Rings", "", "Pearl", "",
		"silver", "img/r9.jpg", "800", "ghost_user")
	insertItem(ctx, t, src, 4, "", "Nameless bracelet", "Bracelets", "", "", "", "", "", "", "admin")

	for _, s := range []struct {
		id   int
		sku  string
		size string
		wh   string
		qty  int
	}{
		{1, "B1", "6", "PRG", 5},
		{2, "B1", "7", "PRG", 3},
		{3, "R9", "", "PRG", 7},
		{4, "B1", "9", "PRG", 2}, // size never seen by the products phase
	} {
		require.NoError(t, src.Exec(ctx,
			`INSERT INTO item_stock (id, sku, size, warehouse, qty) VALUES ($1, $2, $3, $4, $5)`,
			s.id, s.sku, s.size, s.wh, s.qty))
	}

	for _, s := range []struct {
		id   int
		sku  string
		qty  int
		pos  int
	}{
		{1, "B1", 1, 1},
		{2, "R9", 2, 2},
		{3, "GONE", 1, 3}, // sku that never existed in items
	} {
		require.NoError(t, src.Exec(ctx,
			`INSERT INTO item_sets (id, set_code, set_name, item_sku, qty, position) VALUES ($1, $2, $3, $4, $5, $6)`,
			s.id, "SET1", "Gift set", s.sku, s.qty, s.pos))
	}
}

func countRows(ctx context.Context, t *testing.T, tgt db.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, tgt.QueryRow(ctx, query, args...).Scan(&n))
	return n
}

// TestFullRunbook drives every phase in runbook order over the canonical
// fixture and checks the resulting catalog shape, then re-runs the mutating
// phases to check idempotence.
func TestFullRunbook(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	seedLegacyFixture(ctx, t, r.Source)

	// Dictionaries.
	s, err := RunCategories(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Succeeded) // Bracelets, Rings + collection Classic

	s, err = RunAttributes(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Succeeded) // stones Onyx, Pearl; sizes 6, 7

	s, err = RunMaterials(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Succeeded) // gold, silver

	// Products: one parent with two synthesized variants, one simple ring.
	s, err = RunProducts(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Succeeded)
	assert.Equal(t, 0, s.Failed)
	assert.Equal(t, 1, s.Invalid)
	assert.Equal(t, map[string]int{"missing_sku": 1}, s.InvalidReasons)

	var parentID int64
	var ptype string
	require.NoError(t, r.Target.QueryRow(ctx,
		`SELECT id, product_type FROM products WHERE tenant_id = $1 AND sku = $2`, 1, "B1").
		Scan(&parentID, &ptype))
	assert.Equal(t, "variant", ptype, "a product owning variants is discriminated as such")
	var childType string
	require.NoError(t, r.Target.QueryRow(ctx,
		`SELECT product_type FROM products WHERE tenant_id = $1 AND sku = $2`, 1, "B1-6").
		Scan(&childType))
	assert.Equal(t, "variant_item", childType)

	// Variant rows carry contiguous sort orders in numeric axis order.
	rows, err := r.Target.Query(ctx,
		`SELECT p.sku, v.sort_order FROM product_variants v
		 JOIN products p ON p.id = v.variant_id
		 WHERE v.parent_id = $1 ORDER BY v.sort_order`, parentID)
	require.NoError(t, err)
	require.Len(t, rows.Values, 2)
	assert.Equal(t, "B1-6", rows.Values[0][0])
	assert.EqualValues(t, 1, rows.Values[0][1])
	assert.Equal(t, "B1-7", rows.Values[1][0])
	assert.EqualValues(t, 2, rows.Values[1][1])

	// Unresolved references write NULL, never fail the record.
	var createdBy, collectionID any
	require.NoError(t, r.Target.QueryRow(ctx,
		`SELECT created_by, collection_id FROM products WHERE tenant_id = $1 AND sku = $2`, 1, "R9").
		Scan(&createdBy, &collectionID))
	assert.Nil(t, createdBy)
	assert.Nil(t, collectionID)
	lk := s.Lookups["users"]
	assert.Equal(t, 1, lk[1], "ghost_user should count as unresolved")

	// Re-running products writes nothing new.
	s, err = RunProducts(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Succeeded)
	assert.Equal(t, 4, s.Skipped)
	assert.Equal(t, 4, countRows(ctx, t, r.Target, `SELECT COUNT(*) FROM products`))

	// Attribute values and material links on the parent products.
	s, err = RunAttributeValues(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Failed)
	var stoneVal string
	require.NoError(t, r.Target.QueryRow(ctx,
		`SELECT value FROM product_attribute_values WHERE product_id = $1 AND attr_type = $2`,
		parentID, "stone").Scan(&stoneVal))
	assert.Equal(t, "Onyx", stoneVal)
	var sizeVal string
	require.NoError(t, r.Target.QueryRow(ctx,
		`SELECT value FROM product_attribute_values WHERE product_id = $1 AND attr_type = $2`,
		parentID, "size").Scan(&sizeVal))
	assert.Contains(t, []string{"6", "7"}, sizeVal)
	assert.Equal(t, 2, countRows(ctx, t, r.Target,
		`SELECT COUNT(*) FROM product_materials WHERE product_id = $1`, parentID))

	// Images keep field order.
	s, err = RunImages(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Succeeded)
	imgRows, err := r.Target.Query(ctx,
		`SELECT path, sort_order FROM images WHERE product_id = $1 ORDER BY sort_order`, parentID)
	require.NoError(t, err)
	require.Len(t, imgRows.Values, 2)
	assert.Equal(t, "img/b1-a.jpg", imgRows.Values[0][0])

	// Stock: sized rows land on variants, the unseen size falls back to the
	// parent, the sizeless row lands on the simple product.
	s, err = RunStock(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Succeeded)
	assert.Equal(t, 0, s.Failed)
	var qty int64
	require.NoError(t, r.Target.QueryRow(ctx,
		`SELECT sl.quantity FROM stock_levels sl JOIN products p ON p.id = sl.product_id WHERE p.sku = $1`,
		"B1-6").Scan(&qty))
	assert.EqualValues(t, 5, qty)
	require.NoError(t, r.Target.QueryRow(ctx,
		`SELECT quantity FROM stock_levels WHERE product_id = $1`, parentID).Scan(&qty))
	assert.EqualValues(t, 2, qty)

	// Stock is update-in-place: a second run refreshes quantities.
	require.NoError(t, r.Source.Exec(ctx,
		`UPDATE item_stock SET qty = $1 WHERE id = $2`, 9, 1))
	s, err = RunStock(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Updated)
	require.NoError(t, r.Target.QueryRow(ctx,
		`SELECT sl.quantity FROM stock_levels sl JOIN products p ON p.id = sl.product_id WHERE p.sku = $1`,
		"B1-6").Scan(&qty))
	assert.EqualValues(t, 9, qty)

	// Sets: one set, two resolvable members, one unknown sku skip-logged.
	s, err = RunSets(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Succeeded) // set + 2 items
	assert.Equal(t, 1, s.Invalid)
	assert.Equal(t, map[string]int{"unknown_product": 1}, s.InvalidReasons)
	assert.Equal(t, 1, countRows(ctx, t, r.Target, `SELECT COUNT(*) FROM product_sets`))
	assert.Equal(t, 2, countRows(ctx, t, r.Target, `SELECT COUNT(*) FROM set_items`))
}

// TestCorrelationArtifactCoversVariants checks the products artifact maps
// every written SKU, parents and synthesized children alike.
func TestCorrelationArtifactCoversVariants(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	seedLegacyFixture(ctx, t, r.Source)

	_, err := RunCategories(ctx, r)
	require.NoError(t, err)
	_, err = RunProducts(ctx, r)
	require.NoError(t, err)

	m, err := r.Corr.Load("products")
	require.NoError(t, err)
	for _, sku := range []string{"B1", "B1-6", "B1-7", "R9"} {
		assert.Contains(t, m, sku, fmt.Sprintf("missing correlation for %s", sku))
	}
	assert.Len(t, m, 4)
}
