package db

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"
)

type Db interface {
	InitDb(ctx context.Context) error

	Get() *sql.DB
	Close() error

	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var dbLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	dbLogger = l
}
