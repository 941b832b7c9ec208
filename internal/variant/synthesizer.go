// Package variant synthesizes child records from a canonical group's axis
// values: one variant per value, ordered under the documented sort rules and
// keyed by a synthesized natural key derived from the parent's.
package variant

import (
	"sort"
	"strconv"
	"strings"
)

// MaxNaturalKeyLen is the target schema's key column width. Synthesized keys
// are truncated to this length AFTER suffixing, silently dropping trailing
// characters. That truncation order reproduces the legacy migration scripts
// and can collide for long base names; the synthesizer therefore detects and
// flags collisions instead of letting them reach the store.
const MaxNaturalKeyLen = 100

// DefaultTerminalSlug replaces the literal text of a terminal axis value in
// synthesized keys.
const DefaultTerminalSlug = "mtm"

// Variant is one derived child record, ready for the writer.
type Variant struct {
	AxisValue  string
	NaturalKey string
	SortOrder  int // 1-based, contiguous
	Terminal   bool
	Truncated  bool
	// Collision is set when truncation made this key equal to an earlier
	// sibling's. Colliding variants must be reported, never written.
	Collision bool
}

// Synthesizer holds the per-phase variant policy.
type Synthesizer struct {
	terminals    []string // lowercased terminal tokens
	terminalSlug string
	maxKeyLen    int
}

// New builds a Synthesizer for the given terminal tokens (matched
// case-insensitively by equality or substring, e.g. "made to measure").
func New(terminalTokens []string) *Synthesizer {
	lowered := make([]string, 0, len(terminalTokens))
	for _, tok := range terminalTokens {
		if t := strings.ToLower(strings.TrimSpace(tok)); t != "" {
			lowered = append(lowered, t)
		}
	}
	return &Synthesizer{
		terminals:    lowered,
		terminalSlug: DefaultTerminalSlug,
		maxKeyLen:    MaxNaturalKeyLen,
	}
}

// IsTerminal reports whether an axis value matches a terminal token: equal to
// one, or containing one as a substring, case-insensitively.
func (s *Synthesizer) IsTerminal(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	for _, tok := range s.terminals {
		if lv == tok || strings.Contains(lv, tok) {
			return true
		}
	}
	return false
}

// SortAxis orders axis values under the documented rules:
//  1. terminal values are partitioned out,
//  2. ordinary values sort numerically when both sides parse as floats,
//     otherwise by case-sensitive lexical comparison,
//  3. terminal values come last, keeping their original relative order.
func (s *Synthesizer) SortAxis(values []string) []string {
	var ordinary, terminal []string
	for _, v := range values {
		if s.IsTerminal(v) {
			terminal = append(terminal, v)
		} else {
			ordinary = append(ordinary, v)
		}
	}
	sort.SliceStable(ordinary, func(i, j int) bool {
		a, aerr := strconv.ParseFloat(ordinary[i], 64)
		b, berr := strconv.ParseFloat(ordinary[j], 64)
		if aerr == nil && berr == nil {
			return a < b
		}
		return ordinary[i] < ordinary[j]
	})
	return append(ordinary, terminal...)
}

// ChildKey derives the synthesized natural key for one axis value: parent key
// plus a slugged suffix, truncated to the schema cap AFTER suffixing. Later
// phases (stock) use it to reconstruct the same key from a legacy (sku, size)
// pair without re-running group synthesis.
func (s *Synthesizer) ChildKey(parentKey, axisValue string) (key string, truncated bool) {
	suffix := Slug(axisValue)
	if s.IsTerminal(axisValue) {
		suffix = s.terminalSlug
	}
	key = parentKey + "-" + suffix
	if len(key) > s.maxKeyLen {
		return key[:s.maxKeyLen], true
	}
	return key, false
}

// Synthesize produces one Variant per axis value for the given parent natural
// key, sorted and numbered from 1. Terminal values key as the fixed terminal
// slug rather than their literal text. Keys longer than the schema cap are
// truncated last; truncation collisions are flagged on the variant.
func (s *Synthesizer) Synthesize(parentKey string, axis []string) []Variant {
	ordered := s.SortAxis(axis)
	out := make([]Variant, 0, len(ordered))
	seen := make(map[string]bool, len(ordered))
	for i, v := range ordered {
		key, truncated := s.ChildKey(parentKey, v)
		out = append(out, Variant{
			AxisValue:  v,
			NaturalKey: key,
			SortOrder:  i + 1,
			Terminal:   s.IsTerminal(v),
			Truncated:  truncated,
			Collision:  seen[key],
		})
		seen[key] = true
	}
	return out
}
