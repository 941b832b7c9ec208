package legacy

import (
	"context"
	"fmt"

	"shopmigrate/internal/db"
)

// Reader executes parameterized read queries against the legacy store.
// Failure here is fatal for the run: the store being unreachable means no
// partial extraction is meaningful.
type Reader struct {
	src    db.DB
	driver string
}

// NewReader wraps an open legacy-store connection. The driver name selects
// the pagination dialect (SQL Server pages with OFFSET/FETCH, not LIMIT).
// The caller owns the connection lifecycle (open at run start, close at run
// end).
func NewReader(src db.DB, driver string) *Reader {
	return &Reader{src: src, driver: driver}
}

// FetchBatch runs query with the given args plus the driver's pagination
// clause and returns the batch as ordered rows. The query must already carry
// an ORDER BY so batching is stable across invocations. limit <= 0 reads
// everything.
func (r *Reader) FetchBatch(ctx context.Context, query string, args []any, limit, offset int) ([]Row, error) {
	q := query + db.PageClause(r.driver, limit, offset)
	res, err := r.src.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("legacy fetch: %w", err)
	}
	rows := make([]Row, 0, len(res.Values))
	for _, vals := range res.Values {
		rows = append(rows, NewRow(res.Columns, vals))
	}
	return rows, nil
}

// FetchByKeys runs baseQuery with an IN (...) filter over keys appended, used
// to fetch only rows whose natural key matches a previously loaded
// target-store batch (phase-to-phase batch alignment). Empty keys returns an
// empty batch without touching the store.
func (r *Reader) FetchByKeys(ctx context.Context, baseQuery, keyColumn string, keys []string) ([]Row, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	q := fmt.Sprintf("%s WHERE %s IN (%s) ORDER BY %s",
		baseQuery, keyColumn, db.Placeholders(1, len(keys)), keyColumn)
	res, err := r.src.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("legacy fetch by keys: %w", err)
	}
	rows := make([]Row, 0, len(res.Values))
	for _, vals := range res.Values {
		rows = append(rows, NewRow(res.Columns, vals))
	}
	return rows, nil
}
