// pkg/dialects/mysql/mysql.go
package mysql

import (
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql" // Registers the "mysql" driver

	"github.com/chmenegatti/multiselect/pkg/dialects"
	"github.com/chmenegatti/multiselect/pkg/dialects/common"
	"github.com/chmenegatti/multiselect/pkg/dialects/sqldb"
)

// Name is the registry and configuration name of this dialect.
const Name = "mysql"

// Dialect implements common.Dialect for MySQL/MariaDB.
type Dialect struct{}

var _ common.Dialect = Dialect{}

func (Dialect) Name() string { return Name }

func (Dialect) Quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

func (Dialect) BindVar(int) string { return "?" }

// InsertSQL relies on LastInsertId for the generated key.
func (d Dialect) InsertSQL(table string, columns []string, _ string) (string, bool) {
	if len(columns) == 0 {
		return fmt.Sprintf("INSERT INTO %s () VALUES ()", d.Quote(table)), false
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
	return sqldb.CreateTableIfNotExists(d, table, definitions) + " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
}

func (Dialect) KeyType() string { return "BIGINT UNSIGNED" }
func (Dialect) IntType() string { return "INT" }

// prepareDSN forces parseTime so DATETIME columns scan into time.Time.
// Unparseable DSNs are returned unchanged and fail later in sql.Open.
func prepareDSN(dsn string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return dsn
	}
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// NewDataSource returns an unconnected MySQL data source.
func NewDataSource() *sqldb.DataSource {
	return sqldb.New("mysql", Dialect{}, sqldb.WithDSN(prepareDSN))
}

func init() {
	dialects.Register(Name, func() common.DataSource { return NewDataSource() })
}
