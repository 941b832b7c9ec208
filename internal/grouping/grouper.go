// Package grouping clusters flat legacy rows into canonical entity groups.
// The legacy schema never stored "these rows are variants of one product"
// explicitly; the grouper infers it under a strategy chosen per migration
// phase by configuration, never from data content, so the algorithm itself
// stays pure and independently testable.
package grouping

import (
	"fmt"
	"strings"

	"shopmigrate/internal/legacy"
)

// Strategy selects how rows are clustered.
type Strategy int

const (
	// ExactKey groups by one literal column (e.g. legacy SKU).
	ExactKey Strategy = iota
	// BaseName strips a trailing " - <suffix>" from a name column (split on
	// the last occurrence) and groups by (baseName, secondaryAttribute).
	BaseName
	// CompositeCategorical groups by (category, collection) when category
	// equals the configured sentinel value, else falls back to BaseName.
	CompositeCategorical
)

// ParseStrategy maps a config string onto a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exact":
		return ExactKey, nil
	case "basename":
		return BaseName, nil
	case "composite":
		return CompositeCategorical, nil
	default:
		return 0, fmt.Errorf("unknown grouping strategy %q", s)
	}
}

// nameSuffixSep is the legacy naming convention separating a base name from a
// variant suffix, e.g. "Bracelet A - 6".
const nameSuffixSep = " - "

// groupKey is the typed form of a group key. It is serialized only at the
// map/reporting boundary to avoid delimiter collisions leaking into logic.
type groupKey struct {
	primary   string
	secondary string
}

func (k groupKey) String() string {
	if k.secondary == "" {
		return k.primary
	}
	return k.primary + "::" + k.secondary
}

// Group is a cluster of legacy rows judged to represent one logical entity.
type Group struct {
	// Key is the derived group key, e.g. "bracelet a::onyx".
	Key string
	// Rows holds the member rows in input order. Never empty.
	Rows []legacy.Row
	// Axis is the ordered, deduplicated set of variant-defining values
	// extracted from the configured delimited fields. May be empty, in which
	// case the group is written as a single non-variant record.
	Axis []string
}

// Representative returns the first row, used for shared scalar fields.
func (g Group) Representative() legacy.Row { return g.Rows[0] }

// Config carries the per-phase grouping policy.
type Config struct {
	Strategy Strategy

	KeyColumn       string // ExactKey: literal column to group by
	NameColumn      string // BaseName: column carrying "<base> - <suffix>"
	SecondaryColumn string // BaseName: secondary attribute column (e.g. stone)

	CategoryColumn   string // CompositeCategorical
	CollectionColumn string // CompositeCategorical
	SentinelCategory string // CompositeCategorical trigger value

	// AxisColumns are delimited fields contributing axis values, in order.
	AxisColumns []string
}

// GroupRows clusters rows under cfg. Given the same input row order the
// result is deterministic: groups appear in first-seen order and axis values
// keep first-seen order within each group.
func GroupRows(cfg Config, rows []legacy.Row) []Group {
	byKey := make(map[string]int)
	var out []Group
	for _, row := range rows {
		key := deriveKey(cfg, row)
		mk := strings.ToLower(key.primary) + "\x00" + strings.ToLower(key.secondary)
		idx, seen := byKey[mk]
		if !seen {
			idx = len(out)
			byKey[mk] = idx
			out = append(out, Group{Key: key.String()})
		}
		g := &out[idx]
		g.Rows = append(g.Rows, row)
		for _, col := range cfg.AxisColumns {
			for _, v := range SplitMultiValue(row.String(col)) {
				g.Axis = appendUnique(g.Axis, v)
			}
		}
	}
	return out
}

func deriveKey(cfg Config, row legacy.Row) groupKey {
	switch cfg.Strategy {
	case ExactKey:
		return groupKey{primary: row.String(cfg.KeyColumn)}
	case CompositeCategorical:
		cat := row.String(cfg.CategoryColumn)
		if strings.EqualFold(cat, cfg.SentinelCategory) {
			return groupKey{primary: cat, secondary: row.String(cfg.CollectionColumn)}
		}
		fallthrough
	default: // BaseName
		base, _ := SplitBaseName(row.String(cfg.NameColumn))
		return groupKey{primary: base, secondary: row.String(cfg.SecondaryColumn)}
	}
}

// SplitBaseName splits name on the LAST " - " occurrence, returning the base
// and the trailing suffix. Names without the separator return (name, "").
func SplitBaseName(name string) (base, suffix string) {
	i := strings.LastIndex(name, nameSuffixSep)
	if i < 0 {
		return name, ""
	}
	return strings.TrimSpace(name[:i]), strings.TrimSpace(name[i+len(nameSuffixSep):])
}

// SplitMultiValue extracts the logical values of one delimited field. The
// delimiter check is per field, not per sub-token: if the field contains "|"
// it splits on "|" only; otherwise it splits on ",". Values are trimmed,
// empties dropped, and duplicates removed preserving first-seen order.
func SplitMultiValue(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	sep := ","
	if strings.Contains(s, "|") {
		sep = "|"
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		out = appendUnique(out, p)
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, have := range list {
		if have == v {
			return list
		}
	}
	return append(list, v)
}
