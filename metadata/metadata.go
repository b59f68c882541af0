// metadata/metadata.go
package metadata

import (
	"database/sql"
	"reflect"
	"time"
)

// TagName is the struct tag the parser reads.
const TagName = "model"

// RelationType is the kind of relationship between two entities.
type RelationType string

const (
	OneToOne   RelationType = "one-to-one"
	OneToMany  RelationType = "one-to-many"
	ManyToOne  RelationType = "many-to-one"
	ManyToMany RelationType = "many-to-many"
)

// EntityMetadata describes a Go struct mapped onto a table.
type EntityMetadata struct {
	Name              string                     // struct name, e.g. "Post"
	TableName         string                     // e.g. "posts"
	Type              reflect.Type               // the struct type
	Columns           []*ColumnMetadata          // mapped columns, in field order
	ColumnsByName     map[string]*ColumnMetadata // Go field name -> column
	ColumnsByDBName   map[string]*ColumnMetadata // column name -> column
	PrimaryKeyColumns []*ColumnMetadata

	// Presentation columns, if tagged.
	TitleColumn   *ColumnMetadata
	GroupColumn   *ColumnMetadata
	DisplayColumn *ColumnMetadata

	Relations       []*RelationMetadata
	RelationsByName map[string]*RelationMetadata // Go field name -> relation
}

// PrimaryKey returns the single primary key column name, or "" when the
// entity has none or a composite key.
func (e *EntityMetadata) PrimaryKey() string {
	if len(e.PrimaryKeyColumns) != 1 {
		return ""
	}
	return e.PrimaryKeyColumns[0].ColumnName
}

// JSONColumns lists the columns tagged as holding native JSON values.
func (e *EntityMetadata) JSONColumns() []string {
	var out []string
	for _, c := range e.Columns {
		if c.IsJSON {
			out = append(out, c.ColumnName)
		}
	}
	return out
}

// ColumnNames lists every mapped column name in field order.
func (e *EntityMetadata) ColumnNames() []string {
	out := make([]string, 0, len(e.Columns))
	for _, c := range e.Columns {
		out = append(out, c.ColumnName)
	}
	return out
}

// ColumnMetadata describes one struct field mapped onto a column.
type ColumnMetadata struct {
	Entity *EntityMetadata

	FieldName  string
	FieldType  reflect.Type
	FieldIndex int

	ColumnName      string
	DBType          string // explicit database type, e.g. "VARCHAR(100)"
	Size            int
	IsPrimaryKey    bool
	IsAutoIncrement bool
	IsNullable      bool
	IsUnique        bool
	IsJSON          bool
	DefaultValue    string
}

// RelationMetadata describes a relationship declared on a struct field.
type RelationMetadata struct {
	Entity       *EntityMetadata
	FieldName    string       // e.g. "Tags"
	FieldType    reflect.Type // e.g. []Tag
	RelationType RelationType

	TargetEntityType reflect.Type
	TargetEntityName string

	// The owning side holds the foreign key or the join table.
	IsOwningSide bool

	// ToOne: foreign key columns on this table. ManyToMany: join table
	// columns pointing back at this entity.
	JoinColumns []*JoinColumnMetadata

	// Inverse side: the field on the target that owns the relation.
	MappedByFieldName string

	// ManyToMany only.
	JoinTableName      string
	InverseJoinColumns []*JoinColumnMetadata // join table columns pointing at the target
	SortColumn         string                // join table column holding the position
}

// JoinColumnMetadata describes a foreign key column.
type JoinColumnMetadata struct {
	ColumnName           string
	ReferencedColumnName string
}

var (
	timeType        = reflect.TypeOf(time.Time{})
	nullStringType  = reflect.TypeOf(sql.NullString{})
	nullInt64Type   = reflect.TypeOf(sql.NullInt64{})
	nullFloat64Type = reflect.TypeOf(sql.NullFloat64{})
	nullBoolType    = reflect.TypeOf(sql.NullBool{})
	nullTimeType    = reflect.TypeOf(sql.NullTime{})
)
