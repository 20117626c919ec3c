package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Queryer is the query surface repositories run against. Both *sqlx.DB and
// *sqlx.Tx satisfy it, so a repository rebound with WithTx executes inside
// the caller's transaction without any query changes.
type Queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

var (
	_ Queryer = (*sqlx.DB)(nil)
	_ Queryer = (*sqlx.Tx)(nil)
)
