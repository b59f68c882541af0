// Package sqlite registers the SQLite dialect (mattn/go-sqlite3, cgo).
package sqlite

import (
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // Registers the "sqlite3" driver

	"github.com/chmenegatti/multiselect/pkg/dialects"
	"github.com/chmenegatti/multiselect/pkg/dialects/common"
	"github.com/chmenegatti/multiselect/pkg/dialects/sqldb"
)

const Name = "sqlite3"

type Dialect struct{}

var _ common.Dialect = Dialect{}

func (Dialect) Name() string { return Name }

func (Dialect) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (Dialect) BindVar(int) string { return "?" }

func (d Dialect) InsertSQL(table string, columns []string, _ string) (string, bool) {
	if len(columns) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", d.Quote(table)), false
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(table),
		strings.Join(sqldb.QuoteAll(d, columns), ", "),
		sqldb.Placeholders(d, len(columns)),
	), false
}

func (Dialect) Limit(query string, _ bool, n int) string {
	return fmt.Sprintf("%s LIMIT %d", query, n)
}

func (d Dialect) CreateTableSQL(table string, definitions []string) string {
	return sqldb.CreateTableIfNotExists(d, table, definitions)
}

func (Dialect) KeyType() string { return "INTEGER" }
func (Dialect) IntType() string { return "INTEGER" }

// NewDataSource returns an unconnected SQLite data source. Foreign keys are
// switched on for every connection.
func NewDataSource() *sqldb.DataSource {
	return sqldb.New("sqlite3", Dialect{}, sqldb.WithDSN(func(dsn string) string {
		if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
			return dsn
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "_foreign_keys=on"
	}))
}

func init() {
	dialects.Register(Name, func() common.DataSource { return NewDataSource() })
}
