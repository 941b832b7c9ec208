// Target catalog schema. The migration owns schema creation for fresh
// environments (and hermetic tests); in shared environments the tables
// usually exist already and CREATE TABLE IF NOT EXISTS is a no-op.
//
// Dimension tables the migration only reads (tenants, users, warehouses,
// collections are written by the categories phase) are seeded by the
// operator before the first run.
package migrate

import (
	"context"
	"fmt"

	"shopmigrate/internal/db"
)

// EnsureTargetSchema creates the catalog tables for the given target driver.
// Only the surrogate-key column syntax differs between postgres and sqlite;
// everything else is shared DDL.
func EnsureTargetSchema(ctx context.Context, target db.DB, driver string) error {
	id := "BIGSERIAL PRIMARY KEY"
	if driver == "sqlite" {
		id = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS tenants (
			id %s,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL
		)`, id),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id %s,
			tenant_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			email TEXT,
			UNIQUE (tenant_id, name)
		)`, id),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS categories (
			id %s,
			tenant_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			UNIQUE (tenant_id, name)
		)`, id),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS collections (
			id %s,
			tenant_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			UNIQUE (tenant_id, name)
		)`, id),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS warehouses (
			id %s,
			tenant_id BIGINT NOT NULL,
			code TEXT NOT NULL,
			name TEXT,
			UNIQUE (tenant_id, code)
		)`, id),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS attributes (
			id %s,
			tenant_id BIGINT NOT NULL,
			attr_type TEXT NOT NULL,
			name TEXT NOT NULL,
			UNIQUE (tenant_id, attr_type, name)
		)`, id),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS materials (
			id %s,
			tenant_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			UNIQUE (tenant_id, name)
		)`, id),
		// sku is capped at 100 characters; synthesized variant keys are
		// truncated to fit before they reach the store.
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS products (
			id %s,
			tenant_id BIGINT NOT NULL,
			sku VARCHAR(100) NOT NULL,
			name TEXT NOT NULL,
			product_type TEXT NOT NULL,
			category_id BIGINT,
			collection_id BIGINT,
			created_by BIGINT,
			price NUMERIC(12,2),
			UNIQUE (tenant_id, sku)
		)`, id),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS product_variants (
			id %s,
			parent_id BIGINT NOT NULL,
			variant_id BIGINT NOT NULL,
			sort_order INTEGER NOT NULL,
			UNIQUE (parent_id, variant_id)
		)`, id),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS product_attribute_values (
			id %s,
			product_id BIGINT NOT NULL,
			attr_type TEXT NOT NULL,
			value TEXT NOT NULL,
			UNIQUE (product_id, attr_type)
		)`, id),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS product_materials (
			id %s,
			product_id BIGINT NOT NULL,
			material_id BIGINT NOT NULL,
			UNIQUE (product_id, material_id)
		)`, id),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS images (
			id %s,
			product_id BIGINT NOT NULL,
			path TEXT NOT NULL,
			sort_order INTEGER NOT NULL,
			UNIQUE (product_id, path)
		)`, id),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stock_levels (
			id %s,
			product_id BIGINT NOT NULL,
			warehouse_id BIGINT NOT NULL,
			quantity BIGINT NOT NULL CHECK (quantity >= 0),
			UNIQUE (product_id, warehouse_id)
		)`, id),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS product_sets (
			id %s,
			tenant_id BIGINT NOT NULL,
			code TEXT NOT NULL,
			name TEXT,
			UNIQUE (tenant_id, code)
		)`, id),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS set_items (
			id %s,
			set_id BIGINT NOT NULL,
			product_id BIGINT NOT NULL,
			quantity BIGINT NOT NULL,
			sort_order INTEGER NOT NULL,
			UNIQUE (set_id, product_id)
		)`, id),
	}
	for _, stmt := range stmts {
		if err := target.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure target schema: %w", err)
		}
	}
	return nil
}
