package migrate

import (
	"context"
	"strings"

	"shopmigrate/internal/db"
	"shopmigrate/internal/grouping"
	"shopmigrate/internal/resolve"
	"shopmigrate/internal/skiplog"
	"shopmigrate/internal/writer"
)

// attrTypeSep joins attribute type and name in natural keys and correlation
// artifacts, matching the composite key delimiter used by the lookup indexes.
const attrTypeSep = "|"

// attrColumns maps attribute types onto the legacy columns carrying their
// values. Order matters for deterministic batches.
var attrColumns = []struct {
	attrType string
	column   string
}{
	{"stone", "stone"},
	{"size", "sizes"},
}

// attrRecord inserts one typed attribute dictionary entry. Skip-on-duplicate
// with a case-insensitive existence check.
type attrRecord struct {
	tenantID int64
	attrType string
	name     string
	legacyID string
}

func (a attrRecord) EntityType() string { return "attribute" }
func (a attrRecord) NaturalKey() string { return a.attrType + attrTypeSep + a.name }
func (a attrRecord) LegacyID() string   { return a.legacyID }

func (a attrRecord) Apply(ctx context.Context, tx db.Tx) (int64, writer.Outcome, error) {
	var id int64
	err := tx.QueryRow(ctx,
		`SELECT id FROM attributes WHERE tenant_id = $1 AND attr_type = $2 AND LOWER(name) = LOWER($3)`,
		a.tenantID, a.attrType, a.name).Scan(&id)
	if err == nil {
		return id, writer.Skipped, nil
	}
	if !db.IsNoRows(err) {
		return 0, 0, err
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO attributes (tenant_id, attr_type, name) VALUES ($1, $2, $3) RETURNING id`,
		a.tenantID, a.attrType, a.name).Scan(&id)
	if err != nil {
		return 0, 0, err
	}
	return id, writer.Inserted, nil
}

// RunAttributes extracts the typed attribute dictionary (stone names, size
// values) from the delimited legacy fields.
func RunAttributes(ctx context.Context, r *Runner) (*Summary, error) {
	return runPhase(ctx, r, "attributes", attributesPhase)
}

func attributesPhase(ctx context.Context, r *Runner, s *Summary, sl *skiplog.Log) (*resolve.Resolver, error) {
	rows, err := r.Reader.FetchBatch(ctx, legacyItemsQuery, nil, r.Cfg.Limit, r.Cfg.Offset)
	if err != nil {
		return nil, err
	}
	s.Read = len(rows)

	var recs []writer.Record
	seen := map[string]bool{}
	for _, row := range rows {
		for _, ac := range attrColumns {
			for _, v := range grouping.SplitMultiValue(row.String(ac.column)) {
				k := ac.attrType + attrTypeSep + strings.ToLower(v)
				if seen[k] {
					continue
				}
				seen[k] = true
				recs = append(recs, attrRecord{
					tenantID: r.Cfg.TenantID,
					attrType: ac.attrType,
					name:     v,
					legacyID: row.String("id"),
				})
			}
		}
	}

	res, err := r.Writer.WriteBatch(ctx, recs)
	if err != nil {
		return nil, err
	}
	s.addResult(res)
	if err := r.Corr.Persist("attributes", r.RunID, res.Correlations); err != nil {
		return nil, err
	}
	return nil, nil
}
