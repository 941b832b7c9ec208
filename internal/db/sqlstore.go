// This file contains the database/sql adapter used for the legacy source
// store (MySQL or SQL Server) and for SQLite targets (hermetic runs, tests).
// One adapter covers all three drivers; the differences are confined to
// placeholder rebinding and savepoint dialect.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Drivers selectable at run start via config; imported for side effects.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

type sqlDB struct {
	db     *sql.DB
	driver string
	style  int
}

// NewSQLStore opens a database/sql connection for the given driver name
// ("mysql", "sqlserver", "sqlite") and pings it so connectivity failures
// surface at run start rather than mid-batch.
func NewSQLStore(ctx context.Context, driver, dsn string) (DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s: DSN must not be empty", driver)
	}
	h, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s open: %w", driver, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.PingContext(pingCtx); err != nil {
		h.Close()
		return nil, fmt.Errorf("%s ping: %v: %w", driver, err, ErrConnection)
	}
	return &sqlDB{db: h, driver: driver, style: BindStyle(driver)}, nil
}

func (s *sqlDB) Query(ctx context.Context, q string, args ...any) (*Rows, error) {
	rows, err := s.db.QueryContext(ctx, Rebind(s.style, q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLRows(rows)
}

func (s *sqlDB) QueryRow(ctx context.Context, q string, args ...any) RowScanner {
	return s.db.QueryRowContext(ctx, Rebind(s.style, q), args...)
}

func (s *sqlDB) Exec(ctx context.Context, q string, args ...any) error {
	_, err := s.db.ExecContext(ctx, Rebind(s.style, q), args...)
	return err
}

func (s *sqlDB) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx, driver: s.driver, style: s.style}, nil
}

func (s *sqlDB) Close(ctx context.Context) error { return s.db.Close() }

type sqlTx struct {
	tx     *sql.Tx
	driver string
	style  int
}

func (t *sqlTx) Exec(ctx context.Context, q string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, Rebind(t.style, q), args...)
	return err
}

func (t *sqlTx) QueryRow(ctx context.Context, q string, args ...any) RowScanner {
	return t.tx.QueryRowContext(ctx, Rebind(t.style, q), args...)
}

// Savepoint dialects: MySQL and SQLite speak standard SAVEPOINT; SQL Server
// uses SAVE TRANSACTION and has no RELEASE.
func (t *sqlTx) Savepoint(ctx context.Context, name string) error {
	if t.driver == "sqlserver" {
		_, err := t.tx.ExecContext(ctx, "SAVE TRANSACTION "+name)
		return err
	}
	_, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name)
	return err
}

func (t *sqlTx) RollbackTo(ctx context.Context, name string) error {
	if t.driver == "sqlserver" {
		_, err := t.tx.ExecContext(ctx, "ROLLBACK TRANSACTION "+name)
		return err
	}
	_, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return err
}

func (t *sqlTx) Release(ctx context.Context, name string) error {
	if t.driver == "sqlserver" {
		return nil // SQL Server savepoints release on commit
	}
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

func (t *sqlTx) Commit(ctx context.Context) error   { return t.tx.Commit() }
func (t *sqlTx) Rollback(ctx context.Context) error { return t.tx.Rollback() }

// collectSQLRows drains sql.Rows into a materialized Rows value. Byte slices
// are copied to strings since drivers may reuse buffers between scans.
func collectSQLRows(rows *sql.Rows) (*Rows, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := &Rows{Columns: cols}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range raw {
			if b, ok := v.([]byte); ok {
				raw[i] = string(b)
			}
		}
		out.Values = append(out.Values, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
