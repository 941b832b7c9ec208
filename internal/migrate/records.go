// Shared record types for dictionary-style entities. Phase-specific record
// types live next to their phase.
package migrate

import (
	"context"
	"fmt"
	"strconv"

	"shopmigrate/internal/db"
	"shopmigrate/internal/writer"
)

// dictRecord inserts one row into a (tenant_id, name) dictionary table
// (categories, collections, materials) with a skip-on-duplicate policy.
// The existence check is case-insensitive to match natural-key index
// normalization.
type dictRecord struct {
	table      string
	entityType string
	tenantID   int64
	name       string
	legacyID   string
}

func (d dictRecord) EntityType() string { return d.entityType }
func (d dictRecord) NaturalKey() string { return d.name }
func (d dictRecord) LegacyID() string   { return d.legacyID }

func (d dictRecord) Apply(ctx context.Context, tx db.Tx) (int64, writer.Outcome, error) {
	var id int64
	sel := fmt.Sprintf(`SELECT id FROM %s WHERE tenant_id = $1 AND LOWER(name) = LOWER($2)`, d.table)
	err := tx.QueryRow(ctx, sel, d.tenantID, d.name).Scan(&id)
	if err == nil {
		return id, writer.Skipped, nil
	}
	if !db.IsNoRows(err) {
		return 0, 0, err
	}
	ins := fmt.Sprintf(`INSERT INTO %s (tenant_id, name) VALUES ($1, $2) RETURNING id`, d.table)
	if err := tx.QueryRow(ctx, ins, d.tenantID, d.name).Scan(&id); err != nil {
		return 0, 0, err
	}
	return id, writer.Inserted, nil
}

// nullablePrice parses a legacy price field; empty or malformed values write
// NULL rather than failing the record.
func nullablePrice(raw string) *float64 {
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &f
}
