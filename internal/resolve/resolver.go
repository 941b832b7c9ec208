// Package resolve translates legacy text references (user names, categories,
// warehouse codes, attribute values) into target-store surrogate IDs via the
// natural-key indexes built at run start.
//
// Policy: values are normalized (trim + lowercase) by the index before
// lookup; an unmatched value resolves to nil, never to an error — legacy data
// is known to be incomplete and callers write a null foreign key. Per-index
// resolved/unresolved counts feed the run summary for manual follow-up.
package resolve

import (
	"strings"

	"shopmigrate/internal/grouping"
	"shopmigrate/internal/lookup"
)

// Resolver resolves against a fixed set of per-run indexes.
type Resolver struct {
	indexes map[string]*lookup.Index
}

// New wraps the indexes built for this run, keyed by index name.
func New(indexes map[string]*lookup.Index) *Resolver {
	return &Resolver{indexes: indexes}
}

// Resolve maps a raw legacy value through the named index. A nil result means
// "no match": the caller writes NULL and the miss is counted on the index.
func (r *Resolver) Resolve(indexName, raw string) *int64 {
	return r.ResolveKey(indexName, lookup.Key{Name: raw})
}

// ResolveKey resolves a possibly composite key through the named index.
// Unknown index names resolve to nil as well; that is a wiring bug surfaced
// by the zero match rate in the run summary rather than a crash mid-batch.
func (r *Resolver) ResolveKey(indexName string, k lookup.Key) *int64 {
	ix, ok := r.indexes[indexName]
	if !ok {
		return nil
	}
	id, ok := ix.LookupKey(k)
	if !ok {
		return nil
	}
	return &id
}

// AttributeValue is the result of composite attribute resolution: the set of
// matched attribute IDs for one type, plus the comma-joined display names the
// target store knows them by.
type AttributeValue struct {
	AttrType string
	IDs      []int64
	// Display is the comma-joined set of MATCHED display names; unmatched
	// sub-values are dropped silently (counted as unresolved on the index).
	Display string
}

// ResolveAttributeValues splits a delimited legacy field and resolves each
// sub-value independently as (attrType, subValue) against the named composite
// index. Resolved IDs sharing the type merge into one AttributeValue. The
// second return is false when nothing matched.
func (r *Resolver) ResolveAttributeValues(indexName, attrType, rawField string) (AttributeValue, bool) {
	out := AttributeValue{AttrType: attrType}
	ix, ok := r.indexes[indexName]
	if !ok {
		return out, false
	}
	var names []string
	for _, sub := range grouping.SplitMultiValue(rawField) {
		id, display, ok := ix.LookupDisplay(lookup.Key{Type: attrType, Name: sub})
		if !ok {
			continue
		}
		out.IDs = append(out.IDs, id)
		names = append(names, display)
	}
	out.Display = strings.Join(names, ", ")
	return out, len(out.IDs) > 0
}

// Stats reports per-index resolved/unresolved counts for the run summary.
func (r *Resolver) Stats() map[string][2]int {
	out := make(map[string][2]int, len(r.indexes))
	for name, ix := range r.indexes {
		hits, misses := ix.Stats()
		out[name] = [2]int{hits, misses}
	}
	return out
}
