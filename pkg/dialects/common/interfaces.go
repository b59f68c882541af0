// pkg/dialects/common/interfaces.go
package common

import (
	"context"
	"io"

	"github.com/chmenegatti/multiselect/pkg/config"
)

// Dialect describes the SQL syntax differences the repository, the pivot
// store and the migration generator need to care about.
type Dialect interface {
	// Name returns the registry name of the dialect (e.g. "mysql", "postgres").
	Name() string

	// Quote wraps an identifier (table, column) with the dialect's quotes.
	Quote(identifier string) string

	// BindVar returns the placeholder for the i-th parameter. i is 1-based.
	BindVar(i int) string

	// InsertSQL builds an INSERT for table. When returnsKey is true the
	// statement yields the generated primary key as a single-row result and
	// must be run with QueryRow; otherwise the key comes from LastInsertId.
	// With no columns the row is inserted with its column defaults.
	InsertSQL(table string, columns []string, primaryKey string) (query string, returnsKey bool)

	// Limit appends a row limit to query. ordered tells whether the query
	// already carries an ORDER BY clause.
	Limit(query string, ordered bool, n int) string

	// CreateTableSQL builds an idempotent CREATE TABLE statement from column
	// and constraint definitions.
	CreateTableSQL(table string, definitions []string) string

	// KeyType is the column type used for foreign keys in generated pivot tables.
	KeyType() string

	// IntType is the column type used for the sort-order column.
	IntType() string
}

// DataSource is a configured connection pool. Mirrors *sql.DB.
type DataSource interface {
	io.Closer

	// Connect opens the pool using the database section of the configuration.
	Connect(cfg config.DatabaseConfig) error

	Ping(ctx context.Context) error

	// BeginTx starts a transaction. opts may be nil or a sql.TxOptions.
	BeginTx(ctx context.Context, opts any) (Tx, error)

	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) RowScanner
	Query(ctx context.Context, query string, args ...any) (Rows, error)

	Dialect() Dialect
}

// Executor is the subset shared by DataSource and Tx.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) RowScanner
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Tx is an active transaction. Mirrors *sql.Tx.
type Tx interface {
	Executor
	Commit() error
	Rollback() error
}

// Result mirrors sql.Result.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// Rows mirrors *sql.Rows.
type Rows interface {
	io.Closer
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Err() error
}

// RowScanner mirrors *sql.Row.
type RowScanner interface {
	Scan(dest ...any) error
}
