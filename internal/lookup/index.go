// Package lookup builds case-insensitive natural-key indexes from the target
// store. An index is built once per run from a read-only query and is the only
// way the engine turns legacy text references (user names, categories,
// warehouse codes, attribute values) into target surrogate IDs.
//
// Composite keys (attribute type + name) are typed as Key structs and only
// serialized to a delimited string at the map boundary, keeping delimiter
// handling out of business logic.
package lookup

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"shopmigrate/internal/db"
)

// keySep joins composite key parts in the internal map. It is private to this
// package and not expected to appear in data.
const keySep = "|"

// Key is a composite natural key. Type is empty for single-part keys.
type Key struct {
	Type string
	Name string
}

// mapKey normalizes (trim + lowercase) and serializes the key for map lookup.
func (k Key) mapKey() string {
	name := strings.ToLower(strings.TrimSpace(k.Name))
	if k.Type == "" {
		return name
	}
	return strings.ToLower(strings.TrimSpace(k.Type)) + keySep + name
}

type entry struct {
	id      int64
	display string
}

// Index is a read-only natural-key → id map plus per-run lookup counters.
// It is not safe for concurrent use; the engine is single-threaded per run.
type Index struct {
	name    string
	entries map[string]entry
	hits    int
	misses  int
}

// Factory mints a fresh store connection, mirroring db usage in the writer:
// index builds may run in parallel at run start and a single connection must
// not be shared across goroutines.
type Factory func(ctx context.Context) (db.DB, error)

// Build runs query against the target store and indexes its result. The query
// must return either (name, id) or (type, name, id) columns, in that order.
// The display form kept for each entry is the raw name column before
// normalization.
func Build(ctx context.Context, target db.DB, name, query string) (*Index, error) {
	res, err := target.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("build index %s: %w", name, err)
	}
	ix := &Index{name: name, entries: make(map[string]entry, len(res.Values))}
	for _, vals := range res.Values {
		var k Key
		var rawName string
		var id int64
		switch len(vals) {
		case 2:
			rawName = asString(vals[0])
			k = Key{Name: rawName}
			id = asInt64(vals[1])
		case 3:
			rawName = asString(vals[1])
			k = Key{Type: asString(vals[0]), Name: rawName}
			id = asInt64(vals[2])
		default:
			return nil, fmt.Errorf("build index %s: want 2 or 3 columns, got %d", name, len(vals))
		}
		mk := k.mapKey()
		if mk == "" || (k.Type == "" && strings.TrimSpace(rawName) == "") {
			continue
		}
		// First write wins; duplicate natural keys in the target keep the
		// earliest id, matching query ORDER BY.
		if _, exists := ix.entries[mk]; !exists {
			ix.entries[mk] = entry{id: id, display: strings.TrimSpace(rawName)}
		}
	}
	return ix, nil
}

// BuildAll builds one index per spec concurrently, one fresh connection per
// build. Specs map index name → query.
func BuildAll(ctx context.Context, factory Factory, specs map[string]string) (map[string]*Index, error) {
	out := make(map[string]*Index, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	type built struct {
		name string
		ix   *Index
	}
	results := make(chan built, len(specs))
	for name, query := range specs {
		g.Go(func() error {
			conn, err := factory(gctx)
			if err != nil {
				return err
			}
			defer conn.Close(gctx)
			ix, err := Build(gctx, conn, name, query)
			if err != nil {
				return err
			}
			results <- built{name: name, ix: ix}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)
	for b := range results {
		out[b.name] = b.ix
	}
	return out, nil
}

// Name returns the index name used in run summaries.
func (ix *Index) Name() string { return ix.name }

// Len returns the number of indexed keys.
func (ix *Index) Len() int { return len(ix.entries) }

// Lookup resolves a single-part key. Misses are counted, never errors: legacy
// data is known to be incomplete and callers tolerate a null foreign key.
func (ix *Index) Lookup(raw string) (int64, bool) {
	return ix.LookupKey(Key{Name: raw})
}

// LookupKey resolves a possibly composite key.
func (ix *Index) LookupKey(k Key) (int64, bool) {
	e, ok := ix.entries[k.mapKey()]
	if !ok {
		ix.misses++
		return 0, false
	}
	ix.hits++
	return e.id, true
}

// LookupDisplay resolves a composite key and also returns the target store's
// display form of the matched name (used when merging attribute values).
func (ix *Index) LookupDisplay(k Key) (int64, string, bool) {
	e, ok := ix.entries[k.mapKey()]
	if !ok {
		ix.misses++
		return 0, "", false
	}
	ix.hits++
	return e.id, e.display, true
}

// Stats returns the resolved/unresolved counts accumulated since Build.
func (ix *Index) Stats() (hits, misses int) { return ix.hits, ix.misses }

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
