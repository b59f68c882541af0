package resource

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/chmenegatti/multiselect/pkg/dialects/common"
	"github.com/chmenegatti/multiselect/pkg/dialects/postgres"
	"github.com/chmenegatti/multiselect/pkg/dialects/sqldb"
	"github.com/chmenegatti/multiselect/pkg/field"
	"github.com/chmenegatti/multiselect/pkg/logging"
	"github.com/chmenegatti/multiselect/pkg/relation"
)

var postTags = relation.Pivot{Table: "post_tag", ForeignKey: "post_id", RelatedKey: "tag_id"}

// testCatalog declares posts with a reorderable tags relationship, a JSON
// text colors field and a JSON column settings field.
func testCatalog(t *testing.T) (*Catalog, *Type, *Type) {
	t.Helper()

	fields, err := NewRegistry(
		field.New("Tags").FromRelationship("Tag").Reorderable(true),
		field.New("Colors"),
		field.New("Settings").SaveAsJSON(true),
	)
	require.NoError(t, err)

	post := &Type{
		Name:        "Post",
		Key:         "posts",
		Table:       "posts",
		TitleColumn: "title",
		Columns:     []string{"title", "body", "colors"},
		Relations:   map[string]relation.Pivot{"tags": postTags},
		Fields:      fields,
	}
	tag := &Type{
		Name:          "Tag",
		Key:           "tags",
		Table:         "tags",
		TitleColumn:   "name",
		GroupColumn:   "kind",
		DisplayColumn: "rank",
	}
	catalog, err := NewCatalog(post, tag)
	require.NoError(t, err)
	return catalog, post, tag
}

func newMockSource(t *testing.T, d common.Dialect) (*sqldb.DataSource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqldb.Wrap(db, d), mock
}

func newRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	ds, mock := newMockSource(t, postgres.Dialect{})
	return NewRepository(ds, logging.Discard()), mock
}
