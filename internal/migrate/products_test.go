package migrate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A 99-char SKU leaves room for exactly one suffix character, so every
// synthesized key truncates to the same 100 bytes. The first variant is
// written; later colliding siblings are reported, never written.
func TestProductsTruncationCollision(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)

	longSKU := strings.Repeat("x", 99)
	insertItem(ctx, t, r.Source, 1, longSKU, "Long Chain - 6", "Chains", "", "", "6,7", "", "", "100", "admin")

	s, err := RunProducts(ctx, r)
	require.NoError(t, err)

	// Parent plus the first (truncated) variant; the second collides.
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 0, s.Failed)
	assert.Equal(t, 1, s.Invalid)
	assert.Equal(t, map[string]int{"truncated_key_collision": 1}, s.InvalidReasons)

	n := countRows(ctx, t, r.Target, `SELECT COUNT(*) FROM products`)
	assert.Equal(t, 2, n)
	var sku string
	require.NoError(t, r.Target.QueryRow(ctx,
		`SELECT p.sku FROM product_variants v JOIN products p ON p.id = v.variant_id`).Scan(&sku))
	assert.Len(t, sku, 100)
}

// Exact-key grouping keeps rows with distinct SKUs apart even when their
// names share a base.
func TestProductsExactKeyStrategy(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	r.Cfg.Strategy = "exact"

	insertItem(ctx, t, r.Source, 1, "N1", "Necklace - 40", "Necklaces", "", "", "", "", "", "50", "admin")
	insertItem(ctx, t, r.Source, 2, "N2", "Necklace - 45", "Necklaces", "", "", "", "", "", "55", "admin")

	s, err := RunProducts(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 2, countRows(ctx, t, r.Target, `SELECT COUNT(*) FROM products`))
}

// The composite strategy groups sentinel-category rows by (category,
// collection) regardless of their names.
func TestProductsCompositeSentinelStrategy(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	r.Cfg.Strategy = "composite"

	insertItem(ctx, t, r.Source, 1, "W1", "Band Alpha", "Wedding rings", "Eternal", "", "52", "", "", "900", "admin")
	insertItem(ctx, t, r.Source, 2, "W2", "Band Beta", "Wedding rings", "Eternal", "", "54", "", "", "900", "admin")
	insertItem(ctx, t, r.Source, 3, "P1", "Pendant - S", "Pendants", "Eternal", "", "", "", "", "300", "admin")

	s, err := RunProducts(ctx, r)
	require.NoError(t, err)
	// One sentinel group (parent W1 + sizes 52, 54) plus the pendant.
	assert.Equal(t, 4, s.Succeeded)
	assert.Equal(t, 1, countRows(ctx, t, r.Target,
		`SELECT COUNT(*) FROM products WHERE product_type = $1`, productTypeParent))
}

// Rows rejected by validation never reach the writer and the skip log names
// the reason.
func TestProductsValidation(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)

	insertItem(ctx, t, r.Source, 1, "", "No sku", "Rings", "", "", "", "", "", "", "admin")
	insertItem(ctx, t, r.Source, 2, "K1", "", "Rings", "", "", "", "", "", "", "admin")
	insertItem(ctx, t, r.Source, 3, "K2", "Kept Ring", "Rings", "", "", "", "", "", "", "admin")

	s, err := RunProducts(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 2, s.Invalid)
	assert.Equal(t, map[string]int{"missing_sku": 1, "missing_name": 1}, s.InvalidReasons)
}
