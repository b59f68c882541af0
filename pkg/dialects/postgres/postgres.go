// Package postgres registers the PostgreSQL dialect, backed by pgx through
// its database/sql adapter.
package postgres

import (
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // Registers the "pgx" driver

	"github.com/chmenegatti/multiselect/pkg/dialects"
	"github.com/chmenegatti/multiselect/pkg/dialects/common"
	"github.com/chmenegatti/multiselect/pkg/dialects/sqldb"
)

const Name = "postgres"

// Dialect implements common.Dialect for PostgreSQL.
type Dialect struct{}

var _ common.Dialect = Dialect{}

func (Dialect) Name() string { return Name }

func (Dialect) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (Dialect) BindVar(i int) string { return fmt.Sprintf("$%d", i) }

// InsertSQL appends RETURNING so the generated key comes back as a row;
// pgx does not implement LastInsertId.
func (d Dialect) InsertSQL(table string, columns []string, primaryKey string) (string, bool) {
	query := fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", d.Quote(table))
	if len(columns) > 0 {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			d.Quote(table),
			strings.Join(sqldb.QuoteAll(d, columns), ", "),
			sqldb.Placeholders(d, len(columns)),
		)
	}
	if primaryKey == "" {
		return query, false
	}
	return query + " RETURNING " + d.Quote(primaryKey), true
}

func (Dialect) Limit(query string, _ bool, n int) string {
	return fmt.Sprintf("%s LIMIT %d", query, n)
}

func (d Dialect) CreateTableSQL(table string, definitions []string) string {
	return sqldb.CreateTableIfNotExists(d, table, definitions)
}

func (Dialect) KeyType() string { return "BIGINT" }
func (Dialect) IntType() string { return "INTEGER" }

// NewDataSource returns an unconnected PostgreSQL data source.
func NewDataSource() *sqldb.DataSource {
	return sqldb.New("pgx", Dialect{})
}

func init() {
	dialects.Register(Name, func() common.DataSource { return NewDataSource() })
}
