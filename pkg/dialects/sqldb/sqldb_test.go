package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmenegatti/multiselect/pkg/config"
)

type stubDialect struct{}

func (stubDialect) Name() string                         { return "stub" }
func (stubDialect) Quote(id string) string               { return `"` + id + `"` }
func (stubDialect) BindVar(i int) string                 { return fmt.Sprintf("$%d", i) }
func (stubDialect) Limit(q string, _ bool, n int) string { return fmt.Sprintf("%s LIMIT %d", q, n) }
func (stubDialect) KeyType() string                      { return "BIGINT" }
func (stubDialect) IntType() string                      { return "INTEGER" }
func (d stubDialect) CreateTableSQL(t string, defs []string) string {
	return CreateTableIfNotExists(d, t, defs)
}
func (stubDialect) InsertSQL(string, []string, string) (string, bool) { return "", false }

func newMock(t *testing.T) (*DataSource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return Wrap(db, stubDialect{}), mock
}

func TestHelpers(t *testing.T) {
	d := stubDialect{}
	assert.Equal(t, "$1, $2, $3", Placeholders(d, 3))
	assert.Equal(t, "", Placeholders(d, 0))
	assert.Equal(t, []string{`"a"`, `"b"`}, QuoteAll(d, []string{"a", "b"}))
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS \"t\" (\n    a INT,\n    b INT\n)", CreateTableIfNotExists(d, "t", []string{"a INT", "b INT"}))
}

func TestDataSource_ExecQuery(t *testing.T) {
	ds, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM "post_tag"`).WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 2))
	res, err := ds.Exec(ctx, `DELETE FROM "post_tag" WHERE "post_id" = $1`, 1)
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	mock.ExpectQuery(`SELECT "tag_id"`).WillReturnRows(sqlmock.NewRows([]string{"tag_id"}).AddRow(5).AddRow(7))
	rows, err := ds.Query(ctx, `SELECT "tag_id" FROM "post_tag"`)
	require.NoError(t, err)
	var ids []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, []int64{5, 7}, ids)

	mock.ExpectQuery(`SELECT broken`).WillReturnError(errors.New("syntax"))
	_, err = ds.Query(ctx, `SELECT broken`)
	assert.ErrorContains(t, err, "stub query failed: syntax")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDataSource_Tx(t *testing.T) {
	ds, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := ds.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, `INSERT INTO "x" VALUES ($1)`, 1)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	_, err = ds.BeginTx(ctx, "bogus")
	assert.ErrorContains(t, err, "unsupported transaction options type: string")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDataSource_NotConnected(t *testing.T) {
	ds := New("stub", stubDialect{})
	ctx := context.Background()

	_, err := ds.Exec(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = ds.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, ds.QueryRow(ctx, "SELECT 1").Scan(new(int)), ErrNotConnected)
	_, err = ds.BeginTx(ctx, sql.TxOptions{})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, ds.Close(), ErrNotConnected)
}

func TestDataSource_ConnectValidation(t *testing.T) {
	ds := New("stub", stubDialect{})

	err := ds.Connect(config.DatabaseConfig{Dialect: "mysql", DSN: "x"})
	assert.ErrorContains(t, err, "does not match datasource dialect 'stub'")

	err = ds.Connect(config.DatabaseConfig{Dialect: "stub"})
	assert.ErrorContains(t, err, "DSN is required")
}
