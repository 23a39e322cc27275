package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

type Options struct {
	Driver      string
	Path        string
	DSN         string
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

func Open(o Options) (*sql.DB, Dialect, error) {
	var (
		driverName string
		dsn        string
		dialect    = Dialect(strings.ToLower(strings.TrimSpace(o.Driver)))
	)
	switch dialect {
	case "", SQLite:
		return openSQLite(o)
	case Postgres:
		driverName, dsn = "pgx", o.DSN
	case MySQL:
		mc, err := mysql.ParseDSN(o.DSN)
		if err != nil {
			return nil, "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		mc.ParseTime = true
		mc.Loc = time.UTC
		driverName, dsn = "mysql", mc.FormatDSN()
	default:
		return nil, "", fmt.Errorf("unsupported db driver %q", o.Driver)
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, "", err
	}
	configurePool(db, o)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	return db, dialect, nil
}

func OpenSQLite(path string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	db, _, err := openSQLite(Options{Path: path, MaxOpen: maxOpen, MaxIdle: maxIdle, MaxLifetime: maxLifetime})
	return db, err
}

func openSQLite(o Options) (*sql.DB, Dialect, error) {
	if err := os.MkdirAll(filepath.Dir(o.Path), 0o755); err != nil {
		return nil, "", fmt.Errorf("mkdir db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate", o.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, "", err
	}
	configurePool(db, o)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	return db, SQLite, nil
}

func configurePool(db *sql.DB, o Options) {
	if o.MaxOpen > 0 {
		db.SetMaxOpenConns(o.MaxOpen)
	}
	db.SetMaxIdleConns(o.MaxIdle)
	db.SetConnMaxLifetime(o.MaxLifetime)
}

// Rebind rewrites ? placeholders to $n for postgres. Queries must not carry a
// literal question mark.
func Rebind(d Dialect, q string) string {
	if d != Postgres || !strings.Contains(q, "?") {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}
