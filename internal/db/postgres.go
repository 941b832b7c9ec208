// This file contains the Postgres adapter for the migration target store. It
// wraps pgx.Conn/pgx.Tx while remaining testable via a lightweight seam, and
// exposes explicit savepoint control used by the transactional writer.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//
// ===========================
//  Interface seam for testing
// ===========================
//
// pgConnLike defines the minimal subset of methods used from *pgx.Conn.
// This seam allows injecting a test double that mimics *pgx.Conn behavior,
// enabling hermetic (non-networked) testing of the adapter.
//

type pgConnLike interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close(ctx context.Context) error
}

type pgDB struct{ conn pgConnLike }

// NewPostgres connects to Postgres using pgx.Connect and wraps the connection
// in the DB interface. The engine is single-connection by design; callers are
// responsible for closing it via Close().
func NewPostgres(ctx context.Context, dsn string) (DB, error) {
	c, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %v: %w", err, ErrConnection)
	}
	return &pgDB{conn: c}, nil
}

// Query executes a read query and materializes the full result set.
func (p *pgDB) Query(ctx context.Context, sql string, args ...any) (*Rows, error) {
	rows, err := p.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPgRows(rows)
}

// QueryRow delegates to pgx.Conn.QueryRow.
func (p *pgDB) QueryRow(ctx context.Context, sql string, args ...any) RowScanner {
	return p.conn.QueryRow(ctx, sql, args...)
}

// Exec delegates to pgx.Conn.Exec, returning only the error for simplicity.
func (p *pgDB) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := p.conn.Exec(ctx, sql, args...)
	return err
}

// BeginTx starts a transaction and returns a pgTx wrapper satisfying Tx.
func (p *pgDB) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

// Close closes the underlying connection.
func (p *pgDB) Close(ctx context.Context) error { return p.conn.Close(ctx) }

//
// =====================
//  Transaction wrapper
// =====================
//

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := t.tx.Exec(ctx, sql, args...)
	return err
}

func (t *pgTx) QueryRow(ctx context.Context, sql string, args ...any) RowScanner {
	return t.tx.QueryRow(ctx, sql, args...)
}

// Savepoint creates a named savepoint inside the transaction. The name must be
// a valid SQL identifier; the writer derives one from a hash, never from data.
func (t *pgTx) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "SAVEPOINT "+name)
	return err
}

func (t *pgTx) RollbackTo(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return err
}

func (t *pgTx) Release(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// collectPgRows drains pgx.Rows into a materialized Rows value.
func collectPgRows(rows pgx.Rows) (*Rows, error) {
	fds := rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}
	out := &Rows{Columns: cols}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out.Values = append(out.Values, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// newPgDBFromConn constructs a pgDB from a pgConnLike fake.
// Used exclusively in unit tests.
func newPgDBFromConn(c pgConnLike) *pgDB { return &pgDB{conn: c} }
