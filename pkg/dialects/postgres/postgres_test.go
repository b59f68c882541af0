package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chmenegatti/multiselect/pkg/dialects"
)

func TestDialect_Syntax(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, `"post_tag"`, d.Quote("post_tag"))
	assert.Equal(t, `"a""b"`, d.Quote(`a"b`))
	assert.Equal(t, "$1", d.BindVar(1))
	assert.Equal(t, "$12", d.BindVar(12))
}

func TestDialect_InsertSQL(t *testing.T) {
	d := Dialect{}

	query, returnsKey := d.InsertSQL("posts", []string{"title", "tags"}, "id")
	assert.Equal(t, `INSERT INTO "posts" ("title", "tags") VALUES ($1, $2) RETURNING "id"`, query)
	assert.True(t, returnsKey)

	query, returnsKey = d.InsertSQL("post_tag", []string{"post_id", "tag_id"}, "")
	assert.Equal(t, `INSERT INTO "post_tag" ("post_id", "tag_id") VALUES ($1, $2)`, query)
	assert.False(t, returnsKey)

	query, returnsKey = d.InsertSQL("posts", nil, "id")
	assert.Equal(t, `INSERT INTO "posts" DEFAULT VALUES RETURNING "id"`, query)
	assert.True(t, returnsKey)
}

func TestDialect_CreateTableSQL(t *testing.T) {
	sql := Dialect{}.CreateTableSQL("post_tag", []string{`"post_id" BIGINT NOT NULL`, `PRIMARY KEY ("post_id")`})
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS \"post_tag\" (\n    \"post_id\" BIGINT NOT NULL,\n    PRIMARY KEY (\"post_id\")\n)", sql)
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, dialects.RegisteredDrivers(), Name)
}
