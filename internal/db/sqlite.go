package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT UNIQUE,
    email TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    content BLOB,
    content_hash TEXT,
    status TEXT NOT NULL DEFAULT 'active',
    featured_image TEXT,
    user_id TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    modified_at DATETIME
);

CREATE INDEX IF NOT EXISTS posts_created_at ON posts (created_at DESC);`

type SQLite struct {
	path string
	conn *sql.DB
}

func NewSQLite(path string) *SQLite {
	return &SQLite{
		path: path,
		conn: nil,
	}
}

func (s *SQLite) InitDb(ctx context.Context) error {
	conn, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return err
	}

	// Every connection to ":memory:" is a different database.
	if s.path == MemoryPath {
		conn.SetMaxOpenConns(1)
	}

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return err
	}

	s.conn = conn
	dbLogger.Info().Str("path", s.path).Msg("Database initialized")
	return nil
}

func (s *SQLite) Get() *sql.DB {
	return s.conn
}

func (s *SQLite) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *SQLite) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	dbLogger.Debug().Str("query", query).Msg("Query")
	return s.conn.QueryContext(ctx, query, args...)
}

func (s *SQLite) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	dbLogger.Debug().Str("query", query).Msg("QueryRow")
	return s.conn.QueryRowContext(ctx, query, args...)
}

func (s *SQLite) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	dbLogger.Debug().Str("query", query).Msg("Exec")
	return s.conn.ExecContext(ctx, query, args...)
}

// IsUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint.
func IsUniqueViolation(err error) bool {
	var sqlErr sqlite3.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	return sqlErr.Code == sqlite3.ErrConstraint &&
		(sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}
