// Package legacy reads rows from the denormalized legacy store. A Row is an
// ordered column→value mapping with no identity beyond its position in the
// result set plus its own legacy primary key field; rows are immutable once
// read and are consumed exactly once per run.
package legacy

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is one legacy record. Column order is preserved from the result set so
// grouping stays deterministic for a fixed input order.
type Row struct {
	cols   []string
	byName map[string]int
	vals   []any
}

// NewRow builds a Row from aligned column and value slices. len(vals) must
// equal len(cols); extra values are dropped, missing ones read as nil.
func NewRow(cols []string, vals []any) Row {
	byName := make(map[string]int, len(cols))
	for i, c := range cols {
		byName[c] = i
	}
	return Row{cols: cols, byName: byName, vals: vals}
}

// Columns returns the ordered column names.
func (r Row) Columns() []string { return r.cols }

// Value returns the raw value for col, or nil when absent.
func (r Row) Value(col string) any {
	i, ok := r.byName[col]
	if !ok || i >= len(r.vals) {
		return nil
	}
	return r.vals[i]
}

// String returns the trimmed string form of col. Numbers and dates are
// formatted; nil and absent columns read as "".
func (r Row) String(col string) string {
	switch v := r.Value(col).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	case time.Time:
		return v.Format("2006-01-02")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Int64 returns the integer form of col, or 0 when absent or non-numeric.
func (r Row) Int64(col string) int64 {
	switch v := r.Value(col).(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		return n
	default:
		return 0
	}
}

// Empty reports whether col is nil or blank after trimming.
func (r Row) Empty(col string) bool { return r.String(col) == "" }
