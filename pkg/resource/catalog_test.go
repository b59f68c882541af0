package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmenegatti/multiselect/pkg/auth"
	"github.com/chmenegatti/multiselect/pkg/config"
	"github.com/chmenegatti/multiselect/pkg/field"
	"github.com/chmenegatti/multiselect/pkg/relation"
)

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(
		field.New("Tags").FromRelationship("Tag"),
		field.New("Colors"),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	f, ok := reg.Lookup("colors")
	require.True(t, ok)
	assert.Equal(t, "Colors", f.Name())

	_, ok = reg.Relationship("tags")
	assert.True(t, ok)
	_, ok = reg.Relationship("colors")
	assert.False(t, ok, "only relationship fields resolve relationships")

	names := []string{}
	for _, f := range reg.Fields() {
		names = append(names, f.Attribute())
	}
	assert.Equal(t, []string{"tags", "colors"}, names)

	_, err = NewRegistry(field.New("Tags"), field.New("Other", "tags"))
	assert.ErrorContains(t, err, `duplicate field for attribute "tags"`)

	var empty *Registry
	_, ok = empty.Lookup("tags")
	assert.False(t, ok)
	assert.Zero(t, empty.Len())
}

func TestNewCatalog_CompletesTypes(t *testing.T) {
	catalog, post, tag := testCatalog(t)

	got, err := catalog.ByKey("posts")
	require.NoError(t, err)
	assert.Same(t, post, got)

	got, err = catalog.ByName("Tag")
	require.NoError(t, err)
	assert.Same(t, tag, got)

	pivot, ok := post.Pivot("tags")
	require.True(t, ok)
	assert.Equal(t, relation.DefaultSortColumn, pivot.SortColumn, "reorderable pivots get a sort column")
	assert.True(t, post.IsJSONColumn("settings"))
	assert.False(t, post.IsJSONColumn("colors"))
	assert.NotNil(t, tag.Fields, "types without fields get an empty registry")

	_, err = catalog.ByKey("nope")
	assert.ErrorIs(t, err, ErrUnknownResource)
	assert.True(t, IsNotFound(err))
	assert.Len(t, catalog.Types(), 2)
	assert.Equal(t, []relation.Pivot{pivot}, catalog.Pivots())
}

func TestNewCatalog_Validation(t *testing.T) {
	noPivot, _ := NewRegistry(field.New("Tags").FromRelationship("Tag"))
	noTarget, _ := NewRegistry(field.New("Labels").FromRelationship("Label"))

	_, err := NewCatalog(
		&Type{Name: "Post", Key: "posts", Table: "posts", Fields: noPivot},
		&Type{Name: "Page", Key: "pages", Table: "pages", Fields: noTarget,
			Relations: map[string]relation.Pivot{"labels": {Table: "page_label", ForeignKey: "page_id", RelatedKey: "label_id"}}},
		&Type{Name: "Tag", Key: "posts", Table: "tags"},
		&Type{Name: "Broken", Key: "broken"},
	)
	require.Error(t, err)
	assert.ErrorContains(t, err, `resource "posts": relationship field "tags" has no pivot table`)
	assert.ErrorContains(t, err, `resource "pages": relationship field "labels" targets unknown resource "Label"`)
	assert.ErrorContains(t, err, `resource "posts": duplicate key`)
	assert.ErrorContains(t, err, `resource "broken": key, name and table are required`)
}

func TestFromConfig(t *testing.T) {
	catalog, err := FromConfig([]config.ResourceConfig{
		{
			Key: "posts", Name: "Post", Table: "posts", TitleColumn: "title",
			Columns: []string{"title"},
			Relations: []config.RelationConfig{
				{Name: "tags", Table: "post_tag", ForeignKey: "post_id", RelatedKey: "tag_id", SortColumn: "position"},
			},
			Fields: []config.FieldConfig{
				{Name: "Tags", Relationship: "Tag", Reorderable: true, Max: 5},
				{Name: "Status", SingleSelect: true, Options: []config.OptionConfig{
					{Label: "Draft", Value: "draft"},
					{Label: "Live", Value: "live"},
				}},
				{Name: "Colors", Options: []config.OptionConfig{{Label: "Red", Value: "red", Group: "Warm"}}},
				{Name: "Cities", DependsOn: "country", DependsOnOptions: []config.DependentOptionsConfig{
					{Value: "BR", Options: []config.OptionConfig{{Label: "Recife", Value: "rec"}}},
					{Value: "PT", Options: []config.OptionConfig{{Label: "Porto", Value: "opo"}}},
				}},
			},
		},
		{Key: "tags", Name: "Tag", Table: "tags", TitleColumn: "name"},
	})
	require.NoError(t, err)

	post, err := catalog.ByKey("posts")
	require.NoError(t, err)

	tags, ok := post.Fields.Relationship("tags")
	require.True(t, ok)
	assert.Equal(t, "Tag", tags.Target())
	assert.True(t, tags.IsReorderable())
	assert.Equal(t, 5, tags.Meta()["max"])

	pivot, _ := post.Pivot("tags")
	assert.Equal(t, "position", pivot.SortColumn, "an explicit sort column is kept")

	status, ok := post.Fields.Lookup("status")
	require.True(t, ok)
	assert.Equal(t, field.ModeScalar, status.Mode())
	assert.Equal(t, []field.Option{{Label: "Draft", Value: "draft"}, {Label: "Live", Value: "live"}}, status.OptionList().Flat())

	colors, _ := post.Fields.Lookup("colors")
	assert.True(t, colors.OptionList().IsGrouped())

	cities, ok := post.Fields.Lookup("cities")
	require.True(t, ok)
	meta := cities.Meta()
	assert.Equal(t, "country", meta["dependsOn"])
	byValue, ok := meta["dependsOnOptions"].(map[string]field.Options)
	require.True(t, ok)
	require.Contains(t, byValue, "BR")
	assert.Equal(t, []field.Option{{Label: "Recife", Value: "rec"}}, byValue["BR"].Flat())
	assert.Equal(t, []field.Option{{Label: "Porto", Value: "opo"}}, byValue["PT"].Flat())
}

func TestFromConfig_DuplicateField(t *testing.T) {
	_, err := FromConfig([]config.ResourceConfig{{
		Key: "posts", Name: "Post", Table: "posts",
		Fields: []config.FieldConfig{{Name: "Tags"}, {Name: "Other", Attribute: "tags"}},
	}})
	assert.ErrorContains(t, err, `resource "posts": duplicate field`)
}

type article struct {
	ID       int64    `model:"primaryKey;autoIncrement"`
	Headline string   `model:"title"`
	Section  string   `model:"group"`
	Meta     []byte   `model:"json"`
	Labels   []label  `model:"relation:many-to-many;joinTable:article_label;sortColumn:position"`
	Authors  []author `model:"relation:many-to-many;mappedBy:Articles"`
}

type label struct {
	ID   int64 `model:"pk"`
	Name string
}

type author struct {
	ID       int64 `model:"pk"`
	Articles []article
}

func TestFromModel(t *testing.T) {
	onlyPublished := func(_ auth.Request, q Query) Query { return q.Where("published", "=", true) }

	typ, err := FromModel(&article{},
		WithKey("articles"),
		WithFields(field.New("Labels").FromRelationship("label")),
		WithRelatableQuery(onlyPublished),
		WithModel("App.Article"),
	)
	require.NoError(t, err)

	assert.Equal(t, "article", typ.Name)
	assert.Equal(t, "articles", typ.Key)
	assert.Equal(t, "App.Article", typ.ModelName())
	assert.Equal(t, "articles", typ.Table)
	assert.Equal(t, "id", typ.PrimaryKeyColumn())
	assert.Equal(t, "headline", typ.TitleColumn)
	assert.Equal(t, "section", typ.GroupColumn)
	assert.Equal(t, []string{"headline", "section", "meta"}, typ.Columns)
	assert.Equal(t, []string{"meta"}, typ.JSONColumns)
	assert.Equal(t, map[string]relation.Pivot{
		"labels": {Table: "article_label", ForeignKey: "article_id", RelatedKey: "label_id", SortColumn: "position"},
	}, typ.Relations, "inverse relations are not pivots of this type")

	q := typ.RelatableCandidates(auth.Request{})
	assert.Len(t, q.conditions, 1)

	_, err = FromModel(&article{}, WithFields(field.New("A", "x"), field.New("B", "x")))
	assert.ErrorContains(t, err, "resource article: duplicate field")
}
