// Package db provides database adapter implementations for the two stores the
// migration engine talks to: the legacy source (read-only, driver-selectable
// via database/sql) and the migration target (Postgres via pgx, or SQLite for
// hermetic runs and tests). Both are exposed through the same narrow DB and Tx
// interfaces so the engine never depends on a concrete driver.
//
// Design goals:
//   - Explicit connection objects passed into components; no package-level
//     connection singletons. Lifecycle is "open at run start, close at run end".
//   - Allow mocking via small interface seams (for hermetic unit tests).
//   - Keep behavior minimal and predictable—no implicit retries.
//   - Surface errors directly; avoid wrapping for clarity.
package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConnection marks a store as unreachable. Connection failures are fatal
// for a run: no partial extraction or partial commit is meaningful.
var ErrConnection = errors.New("store unreachable")

// IsConnErr reports whether err means the store connection is gone: either
// an open-time failure (wrapped ErrConnection) or a mid-run drop surfaced by
// the driver (bad connection, network error, closed stream). Callers treat
// both the same way, as fatal for the run.
func IsConnErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnection) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// pgx marks errors that never reached the server as safe to retry;
	// for a single-run batch tool that is a connection-level failure.
	return pgconn.SafeToRetry(err)
}

// IsNoRows reports whether err is a "no rows" result from either driver
// family (database/sql and pgx carry distinct sentinels).
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

// Rows is a fully materialized query result. The engine is a batch,
// single-pass tool; result sets are bounded by LIMIT/OFFSET upstream, so
// materializing keeps the adapter surface small.
type Rows struct {
	Columns []string
	Values  [][]any
}

// RowScanner is the single-row result of QueryRow. Both pgx.Row and
// database/sql.Row satisfy it.
type RowScanner interface {
	Scan(dest ...any) error
}

// DB is a connection capable of running queries and starting transactions.
// SQL is written with $1..$N placeholders; adapters rebind for their driver.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (*Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) RowScanner
	Exec(ctx context.Context, sql string, args ...any) error
	BeginTx(ctx context.Context) (Tx, error)
	Close(ctx context.Context) error
}

// Tx is one long-lived transaction. Savepoint/RollbackTo/Release take a bare
// identifier (no quoting is applied; callers must pass a valid SQL name).
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) error
	QueryRow(ctx context.Context, sql string, args ...any) RowScanner
	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
