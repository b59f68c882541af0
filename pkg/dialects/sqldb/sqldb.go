// Package sqldb implements common.DataSource on top of database/sql. Each
// dialect package registers a factory that wraps this type with its own
// driver name and Dialect.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chmenegatti/multiselect/pkg/config"
	"github.com/chmenegatti/multiselect/pkg/dialects/common"
)

// ErrNotConnected is returned by every operation on a DataSource whose pool
// has not been opened (or was closed).
var ErrNotConnected = errors.New("datasource is not connected")

// DSNFunc rewrites the configured DSN before it is handed to sql.Open.
type DSNFunc func(dsn string) string

// DataSource wraps a *sql.DB with a dialect.
type DataSource struct {
	driverName  string
	dialect     common.Dialect
	prepareDSN  DSNFunc
	pingTimeout time.Duration

	mu sync.RWMutex
	db *sql.DB
}

var _ common.DataSource = (*DataSource)(nil)

// Option customizes a DataSource created with New.
type Option func(*DataSource)

// WithDSN installs a DSN rewrite hook (e.g. forcing parseTime for MySQL).
func WithDSN(fn DSNFunc) Option {
	return func(ds *DataSource) { ds.prepareDSN = fn }
}

// WithPingTimeout bounds the connectivity check performed by Connect.
func WithPingTimeout(d time.Duration) Option {
	return func(ds *DataSource) { ds.pingTimeout = d }
}

// New returns an unconnected DataSource for the database/sql driver
// registered as driverName.
func New(driverName string, dialect common.Dialect, opts ...Option) *DataSource {
	ds := &DataSource{
		driverName:  driverName,
		dialect:     dialect,
		pingTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

// Wrap returns a connected DataSource around an existing pool. Tests use it
// with go-sqlmock.
func Wrap(db *sql.DB, dialect common.Dialect) *DataSource {
	return &DataSource{driverName: dialect.Name(), dialect: dialect, db: db}
}

// Connect opens and verifies the connection pool.
func (ds *DataSource) Connect(cfg config.DatabaseConfig) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.db != nil {
		return fmt.Errorf("%s datasource is already connected", ds.dialect.Name())
	}
	if cfg.Dialect != ds.dialect.Name() {
		return fmt.Errorf("configuration dialect '%s' does not match datasource dialect '%s'", cfg.Dialect, ds.dialect.Name())
	}
	if cfg.DSN == "" {
		return fmt.Errorf("database DSN is required in configuration")
	}

	dsn := cfg.DSN
	if ds.prepareDSN != nil {
		dsn = ds.prepareDSN(dsn)
	}

	db, err := sql.Open(ds.driverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", ds.dialect.Name(), err)
	}

	if cfg.Pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	}
	if cfg.Pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	}
	if cfg.Pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.Pool.ConnMaxIdleTime)
	}
	if cfg.Pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ds.pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping %s database: %w", ds.dialect.Name(), err)
	}

	ds.db = db
	return nil
}

func (ds *DataSource) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.db == nil {
		return fmt.Errorf("%s: %w", ds.dialect.Name(), ErrNotConnected)
	}
	err := ds.db.Close()
	ds.db = nil
	return err
}

func (ds *DataSource) Ping(ctx context.Context) error {
	db, err := ds.pool()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (ds *DataSource) Dialect() common.Dialect {
	return ds.dialect
}

// DB exposes the underlying pool for callers that need database/sql directly.
func (ds *DataSource) DB() (*sql.DB, error) {
	return ds.pool()
}

func (ds *DataSource) BeginTx(ctx context.Context, opts any) (common.Tx, error) {
	db, err := ds.pool()
	if err != nil {
		return nil, err
	}

	var txOptions *sql.TxOptions
	switch o := opts.(type) {
	case nil:
	case sql.TxOptions:
		txOptions = &o
	case *sql.TxOptions:
		txOptions = o
	default:
		return nil, fmt.Errorf("unsupported transaction options type: %T", opts)
	}

	tx, err := db.BeginTx(ctx, txOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to begin %s transaction: %w", ds.dialect.Name(), err)
	}
	return &sqlTx{tx: tx, name: ds.dialect.Name()}, nil
}

func (ds *DataSource) Exec(ctx context.Context, query string, args ...any) (common.Result, error) {
	db, err := ds.pool()
	if err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s exec failed: %w", ds.dialect.Name(), err)
	}
	return res, nil
}

func (ds *DataSource) QueryRow(ctx context.Context, query string, args ...any) common.RowScanner {
	db, err := ds.pool()
	if err != nil {
		return errorRowScanner{err: err}
	}
	return db.QueryRowContext(ctx, query, args...)
}

func (ds *DataSource) Query(ctx context.Context, query string, args ...any) (common.Rows, error) {
	db, err := ds.pool()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s query failed: %w", ds.dialect.Name(), err)
	}
	return rows, nil
}

func (ds *DataSource) pool() (*sql.DB, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if ds.db == nil {
		return nil, fmt.Errorf("%s: %w", ds.dialect.Name(), ErrNotConnected)
	}
	return ds.db, nil
}

type sqlTx struct {
	tx   *sql.Tx
	name string
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (common.Result, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s tx exec failed: %w", t.name, err)
	}
	return res, nil
}

func (t *sqlTx) QueryRow(ctx context.Context, query string, args ...any) common.RowScanner {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t *sqlTx) Query(ctx context.Context, query string, args ...any) (common.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s tx query failed: %w", t.name, err)
	}
	return rows, nil
}

type errorRowScanner struct{ err error }

func (s errorRowScanner) Scan(...any) error { return s.err }

// Placeholders returns n comma-separated bind variables starting at index 1.
func Placeholders(d common.Dialect, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.BindVar(i + 1)
	}
	return strings.Join(parts, ", ")
}

// QuoteAll quotes every identifier in names.
func QuoteAll(d common.Dialect, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = d.Quote(n)
	}
	return out
}

// CreateTableIfNotExists renders the CREATE TABLE IF NOT EXISTS form shared
// by MySQL, PostgreSQL and SQLite.
func CreateTableIfNotExists(d common.Dialect, table string, definitions []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", d.Quote(table), strings.Join(definitions, ",\n    "))
}
