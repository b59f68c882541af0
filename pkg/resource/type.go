package resource

import (
	"fmt"
	"slices"

	"github.com/iancoleman/strcase"

	"github.com/chmenegatti/multiselect/metadata"
	"github.com/chmenegatti/multiselect/pkg/auth"
	"github.com/chmenegatti/multiselect/pkg/field"
	"github.com/chmenegatti/multiselect/pkg/relation"
)

// DefaultPrimaryKey is used when a type does not name its key column.
const DefaultPrimaryKey = "id"

// Type describes one admin resource backed by a table.
type Type struct {
	Name  string // type name used in abilities, e.g. "Tag"
	Key   string // URI key, e.g. "tags"
	Model string // model name in policy checks; defaults to Name
	Table string

	PrimaryKey    string
	TitleColumn   string
	GroupColumn   string
	DisplayColumn string

	// Columns are the plain writable columns copied from submitted input.
	Columns []string
	// JSONColumns hold native JSON values, encoded on write and decoded on read.
	JSONColumns []string
	// Relations maps a relationship name onto its pivot table.
	Relations map[string]relation.Pivot

	// RelatableQuery narrows the candidates offered when this type is the
	// target of a relationship field.
	RelatableQuery func(req auth.Request, q Query) Query

	Fields *Registry
}

// ModelName is the model used in ability checks.
func (t *Type) ModelName() string {
	if t.Model != "" {
		return t.Model
	}
	return t.Name
}

// PrimaryKeyColumn returns the key column, defaulting to "id".
func (t *Type) PrimaryKeyColumn() string {
	if t.PrimaryKey != "" {
		return t.PrimaryKey
	}
	return DefaultPrimaryKey
}

func (t *Type) IsJSONColumn(column string) bool {
	return slices.Contains(t.JSONColumns, column)
}

// Pivot returns the pivot table of the named relationship.
func (t *Type) Pivot(relationship string) (relation.Pivot, bool) {
	p, ok := t.Relations[relationship]
	return p, ok
}

// RelatableCandidates returns the query listing rows of this type that may
// be attached, narrowed by RelatableQuery.
func (t *Type) RelatableCandidates(req auth.Request) Query {
	q := NewQuery()
	if t.RelatableQuery != nil {
		q = t.RelatableQuery(req, q)
	}
	return q
}

// Option customizes a Type built by FromModel.
type Option func(*Type) error

func WithKey(key string) Option {
	return func(t *Type) error { t.Key = key; return nil }
}

func WithModel(model string) Option {
	return func(t *Type) error { t.Model = model; return nil }
}

func WithTable(table string) Option {
	return func(t *Type) error { t.Table = table; return nil }
}

// WithFields registers the multiselect fields of the type.
func WithFields(fields ...field.Multiselect) Option {
	return func(t *Type) error {
		reg, err := NewRegistry(fields...)
		if err != nil {
			return err
		}
		t.Fields = reg
		return nil
	}
}

// WithRelatableQuery installs the candidate narrowing hook.
func WithRelatableQuery(fn func(req auth.Request, q Query) Query) Option {
	return func(t *Type) error { t.RelatableQuery = fn; return nil }
}

// WithRelation declares or overrides a pivot table.
func WithRelation(name string, pivot relation.Pivot) Option {
	return func(t *Type) error {
		if t.Relations == nil {
			t.Relations = make(map[string]relation.Pivot)
		}
		t.Relations[name] = pivot
		return nil
	}
}

// FromModel derives a Type from the `model` struct tags of model. Owning
// many-to-many relations become pivots named after the snake_case field name.
func FromModel(model any, opts ...Option) (*Type, error) {
	meta, err := metadata.Parse(model)
	if err != nil {
		return nil, err
	}

	t := &Type{
		Name:        meta.Name,
		Key:         strcase.ToKebab(meta.Name) + "s",
		Table:       meta.TableName,
		PrimaryKey:  meta.PrimaryKey(),
		JSONColumns: meta.JSONColumns(),
		Relations:   make(map[string]relation.Pivot),
	}
	if meta.TitleColumn != nil {
		t.TitleColumn = meta.TitleColumn.ColumnName
	}
	if meta.GroupColumn != nil {
		t.GroupColumn = meta.GroupColumn.ColumnName
	}
	if meta.DisplayColumn != nil {
		t.DisplayColumn = meta.DisplayColumn.ColumnName
	}
	for _, c := range meta.Columns {
		if !c.IsPrimaryKey && !c.IsAutoIncrement {
			t.Columns = append(t.Columns, c.ColumnName)
		}
	}
	for _, rel := range meta.Relations {
		if rel.RelationType != metadata.ManyToMany || !rel.IsOwningSide {
			continue
		}
		t.Relations[strcase.ToSnake(rel.FieldName)] = relation.Pivot{
			Table:      rel.JoinTableName,
			ForeignKey: rel.JoinColumns[0].ColumnName,
			RelatedKey: rel.InverseJoinColumns[0].ColumnName,
			SortColumn: rel.SortColumn,
		}
	}

	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, fmt.Errorf("resource %s: %w", t.Name, err)
		}
	}
	return t, nil
}
