package legacy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopmigrate/internal/db"
)

func seedLegacy(t *testing.T) db.DB {
	t.Helper()
	ctx := context.Background()
	d, err := db.NewSQLStore(ctx, "sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(ctx) })

	require.NoError(t, d.Exec(ctx, `CREATE TABLE items (id INTEGER, sku TEXT, name TEXT)`))
	for i, sku := range []string{"A1", "A2", "A3", "B1", "B2"} {
		require.NoError(t, d.Exec(ctx, `INSERT INTO items VALUES ($1, $2, $3)`, i+1, sku, "Item "+sku))
	}
	return d
}

func TestFetchBatchLimitOffset(t *testing.T) {
	ctx := context.Background()
	r := NewReader(seedLegacy(t), "sqlite")

	first, err := r.FetchBatch(ctx, `SELECT id, sku, name FROM items ORDER BY id`, nil, 2, 0)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "A1", first[0].String("sku"))
	assert.Equal(t, "A2", first[1].String("sku"))

	second, err := r.FetchBatch(ctx, `SELECT id, sku, name FROM items ORDER BY id`, nil, 2, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "A3", second[0].String("sku"))

	all, err := r.FetchBatch(ctx, `SELECT id, sku, name FROM items ORDER BY id`, nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

// queryRecorder implements db.DB, capturing the query text the Reader emits.
type queryRecorder struct {
	lastQuery string
}

func (q *queryRecorder) Query(ctx context.Context, sql string, args ...any) (*db.Rows, error) {
	q.lastQuery = sql
	return &db.Rows{}, nil
}
func (q *queryRecorder) QueryRow(ctx context.Context, sql string, args ...any) db.RowScanner {
	return nil
}
func (q *queryRecorder) Exec(ctx context.Context, sql string, args ...any) error { return nil }
func (q *queryRecorder) BeginTx(ctx context.Context) (db.Tx, error)              { return nil, nil }
func (q *queryRecorder) Close(ctx context.Context) error                         { return nil }

// SQL Server has no LIMIT clause; batched reads must page with OFFSET/FETCH.
func TestFetchBatchSQLServerPagination(t *testing.T) {
	ctx := context.Background()
	rec := &queryRecorder{}
	r := NewReader(rec, "sqlserver")

	_, err := r.FetchBatch(ctx, `SELECT id, sku FROM items ORDER BY id`, nil, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, `SELECT id, sku FROM items ORDER BY id OFFSET 4 ROWS FETCH NEXT 2 ROWS ONLY`, rec.lastQuery)

	_, err = r.FetchBatch(ctx, `SELECT id, sku FROM items ORDER BY id`, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, `SELECT id, sku FROM items ORDER BY id`, rec.lastQuery)
}

func TestFetchByKeys(t *testing.T) {
	ctx := context.Background()
	r := NewReader(seedLegacy(t), "sqlite")

	rows, err := r.FetchByKeys(ctx, `SELECT id, sku, name FROM items`, "sku", []string{"B2", "A1"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A1", rows[0].String("sku"))
	assert.Equal(t, "B2", rows[1].String("sku"))

	none, err := r.FetchByKeys(ctx, `SELECT id FROM items`, "sku", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRowAccessors(t *testing.T) {
	row := NewRow(
		[]string{"id", "sku", "qty", "price", "added", "note"},
		[]any{int64(7), "  B1 ", "12", 9.5, time.Date(2019, 4, 2, 0, 0, 0, 0, time.UTC), nil},
	)
	assert.Equal(t, "B1", row.String("sku"))
	assert.Equal(t, int64(7), row.Int64("id"))
	assert.Equal(t, int64(12), row.Int64("qty"))
	assert.Equal(t, "9.5", row.String("price"))
	assert.Equal(t, "2019-04-02", row.String("added"))
	assert.True(t, row.Empty("note"))
	assert.True(t, row.Empty("missing"))
	assert.Nil(t, row.Value("missing"))
}
