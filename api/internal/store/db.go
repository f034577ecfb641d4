// Package store persists per-client history in a key/value slot table.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
create table if not exists kv_slots (
	slot       text primary key,
	value      text not null,
	updated_at bigint not null
)`

// IsPostgres reports whether dsn addresses a PostgreSQL server.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to PostgreSQL (pgx) for postgres:// URLs and to SQLite for
// anything else, treated as a file path. The schema is created if missing.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("store: empty dsn")
	}

	var (
		db  *sql.DB
		err error
	)
	if IsPostgres(dsn) {
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("sql.Open pgx: %w", err)
		}
	} else {
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
		if err != nil {
			return nil, fmt.Errorf("sql.Open sqlite3: %w", err)
		}
		// one writer; also keeps :memory: on a single connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// SafeDSNSummary describes dsn without credentials, for logs.
func SafeDSNSummary(dsn string) string {
	if !IsPostgres(dsn) {
		return "sqlite " + dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "postgres (unparseable dsn)"
	}
	user := ""
	if u.User != nil {
		user = u.User.Username()
	}
	return fmt.Sprintf("postgres host=%s db=%s user=%s sslmode=%s",
		u.Host, strings.TrimPrefix(u.Path, "/"), user, u.Query().Get("sslmode"))
}
