package migrate

import (
	"context"
	"strings"

	"shopmigrate/internal/grouping"
	"shopmigrate/internal/resolve"
	"shopmigrate/internal/skiplog"
	"shopmigrate/internal/writer"
)

// RunMaterials extracts the material dictionary from the delimited legacy
// materials field. Skip-on-duplicate.
func RunMaterials(ctx context.Context, r *Runner) (*Summary, error) {
	return runPhase(ctx, r, "materials", materialsPhase)
}

func materialsPhase(ctx context.Context, r *Runner, s *Summary, sl *skiplog.Log) (*resolve.Resolver, error) {
	rows, err := r.Reader.FetchBatch(ctx, legacyItemsQuery, nil, r.Cfg.Limit, r.Cfg.Offset)
	if err != nil {
		return nil, err
	}
	s.Read = len(rows)

	var recs []writer.Record
	seen := map[string]bool{}
	for _, row := range rows {
		for _, name := range grouping.SplitMultiValue(row.String("materials")) {
			if seen[strings.ToLower(name)] {
				continue
			}
			seen[strings.ToLower(name)] = true
			recs = append(recs, dictRecord{
				table: "materials", entityType: "material",
				tenantID: r.Cfg.TenantID, name: name, legacyID: row.String("id"),
			})
		}
	}

	res, err := r.Writer.WriteBatch(ctx, recs)
	if err != nil {
		return nil, err
	}
	s.addResult(res)
	if err := r.Corr.Persist("materials", r.RunID, res.Correlations); err != nil {
		return nil, err
	}
	return nil, nil
}
