// Package sqlserver registers the Microsoft SQL Server dialect.
package sqlserver

import (
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // Registers the "sqlserver" driver

	"github.com/chmenegatti/multiselect/pkg/dialects"
	"github.com/chmenegatti/multiselect/pkg/dialects/common"
	"github.com/chmenegatti/multiselect/pkg/dialects/sqldb"
)

const Name = "sqlserver"

type Dialect struct{}

var _ common.Dialect = Dialect{}

func (Dialect) Name() string { return Name }

func (Dialect) Quote(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

func (Dialect) BindVar(i int) string { return fmt.Sprintf("@p%d", i) }

// InsertSQL uses OUTPUT INSERTED to return the identity value; the driver
// does not support LastInsertId.
func (d Dialect) InsertSQL(table string, columns []string, primaryKey string) (string, bool) {
	output := ""
	if primaryKey != "" {
		output = " OUTPUT INSERTED." + d.Quote(primaryKey)
	}
	if len(columns) == 0 {
		return fmt.Sprintf("INSERT INTO %s%s DEFAULT VALUES", d.Quote(table), output), primaryKey != ""
	}
	return fmt.Sprintf("INSERT INTO %s (%s)%s VALUES (%s)",
		d.Quote(table),
		strings.Join(sqldb.QuoteAll(d, columns), ", "),
		output,
		sqldb.Placeholders(d, len(columns)),
	), primaryKey != ""
}

// Limit uses OFFSET/FETCH, which requires an ORDER BY clause.
func (Dialect) Limit(query string, ordered bool, n int) string {
	if !ordered {
		query += " ORDER BY (SELECT NULL)"
	}
	return fmt.Sprintf("%s OFFSET 0 ROWS FETCH NEXT %d ROWS ONLY", query, n)
}

func (d Dialect) CreateTableSQL(table string, definitions []string) string {
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (\n    %s\n)",
		strings.ReplaceAll(table, "'", "''"),
		d.Quote(table),
		strings.Join(definitions, ",\n    "),
	)
}

func (Dialect) KeyType() string { return "BIGINT" }
func (Dialect) IntType() string { return "INT" }

// NewDataSource returns an unconnected SQL Server data source.
func NewDataSource() *sqldb.DataSource {
	return sqldb.New("sqlserver", Dialect{})
}

func init() {
	dialects.Register(Name, func() common.DataSource { return NewDataSource() })
}
