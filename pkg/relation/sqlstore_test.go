package relation

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmenegatti/multiselect/pkg/dialects/postgres"
	"github.com/chmenegatti/multiselect/pkg/dialects/sqldb"
	"github.com/chmenegatti/multiselect/pkg/logging"
)

func newSQLStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(sqldb.Wrap(db, postgres.Dialect{}), logging.Discard()), mock
}

func TestSQLStore_Related(t *testing.T) {
	store, mock := newSQLStore(t)
	sorted := postTags
	sorted.SortColumn = "sort_order"

	mock.ExpectQuery(`SELECT "tag_id" FROM "post_tag" WHERE "post_id" = $1 ORDER BY "sort_order"`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"tag_id"}).AddRow(int64(7)).AddRow([]byte("5")).AddRow("uuid-1"))

	ids, err := store.Related(context.Background(), sorted, 1)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(7), int64(5), "uuid-1"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_AttachSkipsExisting(t *testing.T) {
	store, mock := newSQLStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "tag_id" FROM "post_tag" WHERE "post_id" = $1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"tag_id"}).AddRow(int64(5)).AddRow(int64(7)))
	mock.ExpectExec(`INSERT INTO "post_tag" ("post_id", "tag_id") VALUES ($1, $2)`).
		WithArgs(1, int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Attach(context.Background(), postTags, 1, []any{int64(7), int64(2)})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_AttachRollsBackOnError(t *testing.T) {
	store, mock := newSQLStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "tag_id" FROM "post_tag" WHERE "post_id" = $1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"tag_id"}))
	mock.ExpectExec(`INSERT INTO "post_tag" ("post_id", "tag_id") VALUES ($1, $2)`).
		WithArgs(1, int64(2)).
		WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	err := store.Attach(context.Background(), postTags, 1, []any{int64(2)})
	assert.ErrorContains(t, err, "fk violation")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Detach(t *testing.T) {
	store, mock := newSQLStore(t)

	mock.ExpectExec(`DELETE FROM "post_tag" WHERE "post_id" = $1 AND "tag_id" IN ($2, $3)`).
		WithArgs(1, int64(5), int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, store.Detach(context.Background(), postTags, 1, []any{int64(5), int64(6)}))
	require.NoError(t, store.Detach(context.Background(), postTags, 1, nil), "empty detach is a no-op")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_SetSortOrder(t *testing.T) {
	store, mock := newSQLStore(t)

	mock.ExpectExec(`UPDATE "post_tag" SET "sort_order" = $1 WHERE "post_id" = $2 AND "tag_id" = $3`).
		WithArgs(1, 9, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SetSortOrder(context.Background(), postTags, 9, int64(3), 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

// The full Apply sequence against SQL: insert missing, delete detached,
// then write positions in attach order.
func TestSQLStore_Apply(t *testing.T) {
	store, mock := newSQLStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "tag_id" FROM "post_tag" WHERE "post_id" = $1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"tag_id"}).AddRow(int64(5)).AddRow(int64(7)))
	mock.ExpectExec(`INSERT INTO "post_tag" ("post_id", "tag_id") VALUES ($1, $2)`).WithArgs(1, int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "post_tag" ("post_id", "tag_id") VALUES ($1, $2)`).WithArgs(1, int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(`DELETE FROM "post_tag" WHERE "post_id" = $1 AND "tag_id" IN ($2)`).WithArgs(1, int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "post_tag" SET "sort_order" = $1 WHERE "post_id" = $2 AND "tag_id" = $3`).WithArgs(0, 1, int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "post_tag" SET "sort_order" = $1 WHERE "post_id" = $2 AND "tag_id" = $3`).WithArgs(1, 1, int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))

	change := Change{Attach: []any{int64(2), int64(3)}, Detach: []any{int64(5)}}
	require.NoError(t, Apply(context.Background(), store, postTags, 1, change, true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, int64(12), NormalizeID([]byte("12")))
	assert.Equal(t, "ab", NormalizeID([]byte("ab")))
	assert.Equal(t, int64(3), NormalizeID(int32(3)))
	assert.Equal(t, "x", NormalizeID("x"))
}
