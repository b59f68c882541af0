// metadata/parser_test.go
package metadata_test

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/chmenegatti/multiselect/metadata"
)

type Tag struct {
	ID    int64  `model:"primaryKey;autoIncrement"`
	Name  string `model:"title;size:80"`
	Kind  string `model:"group"`
	Rank  int    `model:"display"`
	Notes string `model:"-"`
}

type Post struct {
	ID        uint   `model:"pk;autoIncrement"`
	Title     string `model:"column:headline;unique;notnull"`
	Body      string
	Settings  []byte `model:"json;type:JSONB"`
	Published sql.NullTime
	EditedAt  *time.Time
	Status    string  `model:"default:'draft'"`
	Tags      []Tag   `model:"relation:many-to-many;joinTable:post_tag;joinColumn:post_id;inverseJoinColumn:tag_id;sortColumn:position"`
	Related   []*Post `model:"relation:many-to-many;joinTable:post_related"`
	Extra     map[string]any
	internal  string
}

type Author struct {
	ID    int64
	Posts []Post `model:"relation:one-to-many;mappedBy:Author"`
}

type BadSize struct {
	Name string `model:"size:abc"`
}

type BadRelations struct {
	Tags   []Tag `model:"relation:many-to-many"`
	Owner  *Tag  `model:"relation:many-to-one;sortColumn:x;joinColumn:tag_id"`
	Broken []Tag `model:"relation:sideways"`
}

func TestParse_Columns(t *testing.T) {
	metadata.ClearMetadataCache()
	t.Cleanup(metadata.ClearMetadataCache)

	meta, err := metadata.Parse(Post{})
	if err != nil {
		t.Fatalf("Parse(Post) failed: %v", err)
	}
	if meta.TableName != "posts" {
		t.Errorf("expected table 'posts', got '%s'", meta.TableName)
	}
	if got := meta.PrimaryKey(); got != "id" {
		t.Errorf("expected primary key 'id', got '%s'", got)
	}

	want := []string{"id", "headline", "body", "settings", "published", "edited_at", "status"}
	if got := meta.ColumnNames(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected columns %v, got %v", want, got)
	}

	title := meta.ColumnsByName["Title"]
	if !title.IsUnique || title.IsNullable {
		t.Errorf("Title: expected unique and not null, got unique=%v nullable=%v", title.IsUnique, title.IsNullable)
	}
	if id := meta.ColumnsByName["ID"]; !id.IsAutoIncrement || id.IsNullable {
		t.Errorf("ID: expected auto increment and not null")
	}
	if settings := meta.ColumnsByDBName["settings"]; !settings.IsJSON || settings.DBType != "JSONB" {
		t.Errorf("settings: expected JSON column of type JSONB, got json=%v type=%s", settings.IsJSON, settings.DBType)
	}
	if got := meta.JSONColumns(); len(got) != 1 || got[0] != "settings" {
		t.Errorf("expected JSON columns [settings], got %v", got)
	}
	for _, name := range []string{"Published", "EditedAt"} {
		if !meta.ColumnsByName[name].IsNullable {
			t.Errorf("%s should be nullable", name)
		}
	}
	if got := meta.ColumnsByName["Status"].DefaultValue; got != "'draft'" {
		t.Errorf("expected default \"'draft'\", got %s", got)
	}
	if _, ok := meta.ColumnsByName["Extra"]; ok {
		t.Error("untagged map field should not be mapped")
	}
}

func TestParse_PresentationColumns(t *testing.T) {
	metadata.ClearMetadataCache()
	t.Cleanup(metadata.ClearMetadataCache)

	meta, err := metadata.Parse(&Tag{})
	if err != nil {
		t.Fatalf("Parse(*Tag) failed: %v", err)
	}
	if meta.TitleColumn == nil || meta.TitleColumn.ColumnName != "name" {
		t.Errorf("expected title column 'name'")
	}
	if meta.GroupColumn == nil || meta.GroupColumn.ColumnName != "kind" {
		t.Errorf("expected group column 'kind'")
	}
	if meta.DisplayColumn == nil || meta.DisplayColumn.ColumnName != "rank" {
		t.Errorf("expected display column 'rank'")
	}
	if meta.ColumnsByName["Name"].Size != 80 {
		t.Errorf("expected size 80, got %d", meta.ColumnsByName["Name"].Size)
	}
	if _, ok := meta.ColumnsByName["Notes"]; ok {
		t.Error("field tagged '-' should be skipped")
	}
}

func TestParse_ManyToMany(t *testing.T) {
	metadata.ClearMetadataCache()
	t.Cleanup(metadata.ClearMetadataCache)

	meta, err := metadata.Parse(Post{})
	if err != nil {
		t.Fatalf("Parse(Post) failed: %v", err)
	}
	if len(meta.Relations) != 2 {
		t.Fatalf("expected 2 relations, got %d", len(meta.Relations))
	}

	tags := meta.RelationsByName["Tags"]
	if tags.RelationType != metadata.ManyToMany || !tags.IsOwningSide {
		t.Errorf("Tags: expected owning many-to-many, got %s owning=%v", tags.RelationType, tags.IsOwningSide)
	}
	if tags.TargetEntityName != "Tag" || tags.JoinTableName != "post_tag" || tags.SortColumn != "position" {
		t.Errorf("Tags: unexpected target/table/sort %s/%s/%s", tags.TargetEntityName, tags.JoinTableName, tags.SortColumn)
	}
	if tags.JoinColumns[0].ColumnName != "post_id" || tags.InverseJoinColumns[0].ColumnName != "tag_id" {
		t.Errorf("Tags: unexpected join columns %s/%s", tags.JoinColumns[0].ColumnName, tags.InverseJoinColumns[0].ColumnName)
	}

	related := meta.RelationsByName["Related"]
	if related.JoinColumns[0].ColumnName != "post_id" || related.InverseJoinColumns[0].ColumnName != "post_id" {
		t.Errorf("Related: join columns should default to <entity>_id, got %s/%s",
			related.JoinColumns[0].ColumnName, related.InverseJoinColumns[0].ColumnName)
	}
	if related.TargetEntityName != "Post" {
		t.Errorf("Related: pointer slice target should resolve to Post, got %s", related.TargetEntityName)
	}
}

func TestParse_InverseSide(t *testing.T) {
	metadata.ClearMetadataCache()
	t.Cleanup(metadata.ClearMetadataCache)

	meta, err := metadata.Parse(Author{})
	if err != nil {
		t.Fatalf("Parse(Author) failed: %v", err)
	}
	posts := meta.RelationsByName["Posts"]
	if posts == nil || posts.IsOwningSide || posts.MappedByFieldName != "Author" {
		t.Fatalf("expected inverse one-to-many mapped by Author, got %+v", posts)
	}
}

func TestParse_Cache(t *testing.T) {
	metadata.ClearMetadataCache()
	t.Cleanup(metadata.ClearMetadataCache)

	meta1, err := metadata.Parse(Tag{})
	if err != nil {
		t.Fatalf("first Parse failed: %v", err)
	}
	meta2, err := metadata.Parse(&Tag{})
	if err != nil {
		t.Fatalf("second Parse failed: %v", err)
	}
	if meta1 != meta2 {
		t.Errorf("expected the cached pointer, got %p != %p", meta1, meta2)
	}

	metadata.ClearMetadataCache()
	meta3, err := metadata.Parse(Tag{})
	if err != nil {
		t.Fatalf("third Parse failed: %v", err)
	}
	if meta1 == meta3 {
		t.Error("expected a fresh pointer after clearing the cache")
	}

	p := metadata.NewParser(nil)
	own, err := p.Parse(Tag{})
	if err != nil {
		t.Fatalf("Parser.Parse failed: %v", err)
	}
	if own == meta3 {
		t.Error("parsers should not share a cache")
	}
}

func TestParse_InvalidInput(t *testing.T) {
	if _, err := metadata.Parse(nil); err == nil {
		t.Error("expected an error for nil")
	}
	if _, err := metadata.Parse(123); err == nil || !strings.Contains(err.Error(), "must be a struct") {
		t.Errorf("unexpected error for int: %v", err)
	}
	n := 456
	if _, err := metadata.Parse(&n); err == nil || !strings.Contains(err.Error(), "must be a struct") {
		t.Errorf("unexpected error for *int: %v", err)
	}
}

func TestParse_TagErrors(t *testing.T) {
	metadata.ClearMetadataCache()
	t.Cleanup(metadata.ClearMetadataCache)

	_, err := metadata.Parse(BadSize{})
	if err == nil || !strings.Contains(err.Error(), "error parsing 'size'") {
		t.Errorf("expected a size error, got %v", err)
	}

	_, err = metadata.Parse(BadRelations{})
	if err == nil {
		t.Fatal("expected relation errors")
	}
	for _, want := range []string{
		"3 error(s)",
		"owning side of ManyToMany requires 'joinTable' on field BadRelations.Tags",
		"only valid for ManyToMany on field BadRelations.Owner",
		"invalid relation type 'sideways' on field BadRelations.Broken",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}
