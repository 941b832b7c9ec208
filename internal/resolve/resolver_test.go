package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopmigrate/internal/db"
	"shopmigrate/internal/lookup"
)

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	ctx := context.Background()
	d, err := db.NewSQLStore(ctx, "sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(ctx) })

	require.NoError(t, d.Exec(ctx, `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)`))
	require.NoError(t, d.Exec(ctx, `INSERT INTO users (id, name) VALUES (1, 'Alice Martin'), (2, 'Bob Stone')`))
	require.NoError(t, d.Exec(ctx, `CREATE TABLE attributes (id INTEGER PRIMARY KEY, type TEXT, name TEXT)`))
	require.NoError(t, d.Exec(ctx,
		`INSERT INTO attributes (id, type, name) VALUES (10, 'stone', 'Onyx'), (11, 'stone', 'Jade'), (12, 'finish', 'Matte')`))

	users, err := lookup.Build(ctx, d, "users", `SELECT name, id FROM users ORDER BY id`)
	require.NoError(t, err)
	attrs, err := lookup.Build(ctx, d, "attributes", `SELECT type, name, id FROM attributes ORDER BY id`)
	require.NoError(t, err)
	return New(map[string]*lookup.Index{"users": users, "attributes": attrs})
}

func TestResolveNullFallback(t *testing.T) {
	r := testResolver(t)

	id := r.Resolve("users", "  alice martin ")
	require.NotNil(t, id)
	assert.Equal(t, int64(1), *id)

	// Unmatched resolves to nil, never an error.
	assert.Nil(t, r.Resolve("users", "Charlie Nobody"))
	// Unknown index name is nil too.
	assert.Nil(t, r.Resolve("warehouses", "PAR-01"))

	stats := r.Stats()
	assert.Equal(t, [2]int{1, 1}, stats["users"])
}

func TestResolveAttributeValuesMergesMatches(t *testing.T) {
	r := testResolver(t)

	got, ok := r.ResolveAttributeValues("attributes", "stone", "onyx|jade|opal")
	require.True(t, ok)
	assert.Equal(t, []int64{10, 11}, got.IDs)
	// Display uses the target store's names for MATCHED sub-values only.
	assert.Equal(t, "Onyx, Jade", got.Display)

	// Comma fallback when no pipe is present.
	got, ok = r.ResolveAttributeValues("attributes", "stone", "Jade, Onyx")
	require.True(t, ok)
	assert.Equal(t, []int64{11, 10}, got.IDs)
	assert.Equal(t, "Jade, Onyx", got.Display)
}

func TestResolveAttributeValuesNothingMatched(t *testing.T) {
	r := testResolver(t)
	got, ok := r.ResolveAttributeValues("attributes", "stone", "opal|pearl")
	assert.False(t, ok)
	assert.Empty(t, got.IDs)
	assert.Equal(t, "", got.Display)

	// Misses are counted against the index for the run summary.
	stats := r.Stats()
	assert.Equal(t, 2, stats["attributes"][1])
}
