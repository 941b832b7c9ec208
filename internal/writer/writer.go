// Package writer persists derived records with per-record fault isolation.
//
// The pattern is one long-lived transaction per batch with a named savepoint
// around each logical record: a record that fails rolls back to its own
// savepoint and the run continues; the outer transaction commits exactly once
// at batch end. This keeps one bad record from aborting the batch while still
// guaranteeing that an infrastructure failure can never leave a partial
// commit (the whole batch is simply retried on the next invocation).
//
// Do not "simplify" this to one transaction per record (loses batch
// atomicity) or to no savepoints (one bad record would abort everything).
package writer

import (
	"context"
	"fmt"
	"log"

	"github.com/zeebo/xxh3"

	"shopmigrate/internal/correlate"
	"shopmigrate/internal/db"
)

// Outcome classifies what Apply did with a record.
type Outcome int

const (
	// Inserted: the record did not exist and was created.
	Inserted Outcome = iota
	// Updated: the natural key existed and mutable fields were updated in
	// place (per-entity policy; see each phase's record type).
	Updated
	// Skipped: the natural key existed and the entity's policy is to
	// preserve the first write. Counted separately from failures.
	Skipped
)

// Record is one logical derived record. Apply performs the natural-key
// existence check plus insert/update per the entity's documented upsert
// policy, inside the supplied transaction, and returns the target-store ID
// (also for Skipped, so correlation maps stay complete across re-runs).
type Record interface {
	EntityType() string
	NaturalKey() string
	LegacyID() string
	Apply(ctx context.Context, tx db.Tx) (newID int64, outcome Outcome, err error)
}

// Failure describes one record that was rolled back to its savepoint.
type Failure struct {
	EntityType string
	NaturalKey string
	LegacyID   string
	Err        string
}

// Result aggregates a batch. Succeeded counts Inserted+Updated; Skipped are
// idempotent no-ops; Failed records carry per-record detail.
type Result struct {
	Succeeded    int
	Updated      int
	Skipped      int
	Failed       int
	Failures     []Failure
	Correlations []correlate.Entry
}

// Writer writes batches to the target store.
type Writer struct {
	target db.DB
}

// New wraps an open target-store connection; the caller owns its lifecycle.
func New(target db.DB) *Writer { return &Writer{target: target} }

// savepointName derives a valid SQL identifier from the record's natural key.
// Natural keys are arbitrary text; the xxh3 hash keeps names short and legal,
// and the sequence number keeps them unique within the transaction.
func savepointName(naturalKey string, seq int) string {
	return fmt.Sprintf("sp_%x_%d", xxh3.HashString(naturalKey), seq)
}

// WriteBatch runs the savepoint state machine over recs and commits once.
// A non-nil error means the batch as a whole failed (begin/commit or a
// savepoint-control statement, i.e. infrastructure) and nothing was written.
// Per-record errors never surface here; they land in Result.Failures.
func (w *Writer) WriteBatch(ctx context.Context, recs []Record) (*Result, error) {
	tx, err := w.target.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}

	res := &Result{}
	for i, rec := range recs {
		sp := savepointName(rec.NaturalKey(), i)
		if err := tx.Savepoint(ctx, sp); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("savepoint %s: %w", sp, err)
		}

		id, outcome, recErr := rec.Apply(ctx, tx)
		if recErr != nil {
			if err := tx.RollbackTo(ctx, sp); err != nil {
				_ = tx.Rollback(ctx)
				return nil, fmt.Errorf("rollback to %s: %w", sp, err)
			}
			res.Failed++
			res.Failures = append(res.Failures, Failure{
				EntityType: rec.EntityType(),
				NaturalKey: rec.NaturalKey(),
				LegacyID:   rec.LegacyID(),
				Err:        recErr.Error(),
			})
			continue
		}
		if err := tx.Release(ctx, sp); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("release %s: %w", sp, err)
		}

		switch outcome {
		case Inserted:
			res.Succeeded++
		case Updated:
			res.Succeeded++
			res.Updated++
		case Skipped:
			res.Skipped++
		}
		if id != 0 {
			// Correlations key on the natural key, not the legacy row id: a
			// synthesized variant has no legacy row of its own, and downstream
			// phases resolve by natural key (SKU, name, code).
			res.Correlations = append(res.Correlations, correlate.Entry{
				OldID: rec.NaturalKey(),
				NewID: id,
			})
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	if res.Failed > 0 {
		log.Printf("writer: committed with per-record failures: succeeded=%d failed=%d skipped=%d",
			res.Succeeded, res.Failed, res.Skipped)
	}
	return res, nil
}
