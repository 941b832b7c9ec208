// Package skiplog records legacy rows excluded from a batch before any write
// is attempted (missing SKU, empty name, unknown category). Excluded rows are
// not failures: they are surfaced as a "skipped — invalid" list in the run
// summary and land in a CSV artifact for manual follow-up.
package skiplog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// Log appends invalid-row records to one CSV file per phase.
type Log struct {
	reasons map[string]int
	count   int
	w       *csv.Writer
	f       *os.File
}

// New creates the CSV at path (parent directories included) and writes the
// header row. Close flushes and closes the file.
func New(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"reason", "entity_type", "legacy_id", "natural_key", "detail"})
	return &Log{reasons: make(map[string]int), w: w, f: f}, nil
}

// Add records one excluded row.
func (l *Log) Add(reason, entityType, legacyID, naturalKey, detail string) {
	l.reasons[reason]++
	l.count++
	_ = l.w.Write([]string{reason, entityType, legacyID, naturalKey, detail})
}

// Count returns the number of rows excluded so far.
func (l *Log) Count() int { return l.count }

// Reasons returns per-reason counts for the run summary.
func (l *Log) Reasons() map[string]int {
	out := make(map[string]int, len(l.reasons))
	for k, v := range l.reasons {
		out[k] = v
	}
	return out
}

// Close flushes buffered rows and closes the file.
func (l *Log) Close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		_ = l.f.Close()
		return err
	}
	return l.f.Close()
}
