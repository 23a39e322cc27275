package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	appdb "carmarket/internal/db"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrListingSold = errors.New("listing already sold")
	ErrImageLimit  = errors.New("maximum images exceeded")
	ErrHasOrders   = errors.New("listing has orders")
)

type Store struct {
	db      *sql.DB
	dialect appdb.Dialect
}

func New(db *sql.DB, dialect appdb.Dialect) *Store {
	if dialect == "" {
		dialect = appdb.SQLite
	}
	return &Store{db: db, dialect: dialect}
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) q(query string) string { return appdb.Rebind(s.dialect, query) }

// withTx runs fn inside a transaction. fn must only use tx: the sqlite pool
// may hold a single connection.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// lockListing takes a row lock on the listing for the rest of tx. sqlite write
// transactions are already exclusive under _txlock=immediate.
func (s *Store) lockListing(ctx context.Context, tx *sql.Tx, id string) error {
	if s.dialect == appdb.SQLite {
		return nil
	}
	var got string
	err := tx.QueryRowContext(ctx, s.q(`SELECT id FROM cars WHERE id=? FOR UPDATE`), id).Scan(&got)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}

func affectedOne(res sql.Result, miss error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return miss
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) in(column string, values []string) {
	if len(values) == 0 {
		return
	}
	args := make([]any, 0, len(values))
	for _, v := range values {
		args = append(args, v)
	}
	w.add(fmt.Sprintf("%s IN (%s)", column, placeholders(len(values))), args...)
}

func (w *where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func likePattern(q string) string {
	return "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
