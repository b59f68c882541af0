// metadata/parser.go
package metadata

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/iancoleman/strcase"
)

// Parser reads `model` struct tags into EntityMetadata and caches the result
// per struct type. It is safe for concurrent use.
type Parser struct {
	logger *slog.Logger

	mu    sync.RWMutex // many concurrent readers, one writer on a miss
	cache map[reflect.Type]*EntityMetadata
}

// NewParser returns a Parser logging to logger. A nil logger discards.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Parser{
		logger: logger.With("component", "metadata"),
		cache:  make(map[reflect.Type]*EntityMetadata),
	}
}

var defaultParser = NewParser(nil)

// Parse parses target with the package default parser.
func Parse(target any) (*EntityMetadata, error) {
	return defaultParser.Parse(target)
}

// ClearMetadataCache empties the default parser's cache.
func ClearMetadataCache() {
	defaultParser.Clear()
}

// Clear empties the cache.
func (p *Parser) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[reflect.Type]*EntityMetadata)
}

// Parse returns the metadata for target, a struct or pointer to struct.
// Every tag problem found is reported at once, joined into one error, and
// nothing is cached in that case.
func (p *Parser) Parse(target any) (*EntityMetadata, error) {
	if target == nil {
		return nil, errors.New("metadata.Parse: target cannot be nil")
	}

	structType := reflect.TypeOf(target)
	if structType.Kind() == reflect.Ptr {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("metadata.Parse: target must be a struct or a pointer to a struct, got %s", reflect.TypeOf(target).Kind())
	}

	p.mu.RLock()
	meta, found := p.cache[structType]
	p.mu.RUnlock()
	if found {
		return meta, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if meta, found = p.cache[structType]; found {
		return meta, nil
	}

	p.logger.Debug("parsing struct tags", "type", structType.Name())
	meta, err := p.parse(structType)
	if err != nil {
		return nil, err
	}
	p.cache[structType] = meta
	p.logger.Debug("metadata cached", "type", structType.Name(), "columns", len(meta.Columns), "relations", len(meta.Relations))
	return meta, nil
}

func (p *Parser) parse(structType reflect.Type) (*EntityMetadata, error) {
	entity := &EntityMetadata{
		Name:            structType.Name(),
		Type:            structType,
		TableName:       strcase.ToSnake(structType.Name()) + "s",
		ColumnsByName:   make(map[string]*ColumnMetadata),
		ColumnsByDBName: make(map[string]*ColumnMetadata),
		RelationsByName: make(map[string]*RelationMetadata),
	}

	var errs []error
	for i := range structType.NumField() {
		field := structType.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get(TagName)
		if tag == "-" {
			continue
		}

		tags, tagErrs := splitTag(tag)
		for _, e := range tagErrs {
			errs = append(errs, fmt.Errorf("%w on field %s.%s", e, entity.Name, field.Name))
		}

		if _, ok := tags["relation"]; ok {
			rel, relErrs := parseRelation(entity, field, tags)
			errs = append(errs, relErrs...)
			if rel != nil {
				entity.Relations = append(entity.Relations, rel)
				entity.RelationsByName[field.Name] = rel
			}
			continue
		}

		col, colErrs := parseColumn(entity, field, i, tags)
		errs = append(errs, colErrs...)
		if col == nil {
			p.logger.Debug("field not mapped", "type", entity.Name, "field", field.Name, "goType", field.Type.String())
			continue
		}
		if prev, dup := entity.ColumnsByDBName[col.ColumnName]; dup {
			p.logger.Warn("duplicate column name", "type", entity.Name, "column", col.ColumnName, "fields", prev.FieldName+","+field.Name)
		}
		entity.Columns = append(entity.Columns, col)
		entity.ColumnsByName[field.Name] = col
		entity.ColumnsByDBName[col.ColumnName] = col
		if col.IsPrimaryKey {
			entity.PrimaryKeyColumns = append(entity.PrimaryKeyColumns, col)
		}
	}

	if len(errs) > 0 {
		for _, e := range errs {
			p.logger.Warn("invalid struct tag", "type", entity.Name, "error", e)
		}
		return nil, fmt.Errorf("metadata.Parse: %d error(s) parsing tags of %s: %w", len(errs), entity.Name, errors.Join(errs...))
	}
	return entity, nil
}

// splitTag splits "key:value;flag" into a map with lowercased keys.
func splitTag(tag string) (map[string]string, []error) {
	tags := make(map[string]string)
	var errs []error
	for _, opt := range strings.Split(tag, ";") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		key, value, _ := strings.Cut(opt, ":")
		key = strings.ToLower(strings.TrimSpace(key))
		if _, dup := tags[key]; dup {
			errs = append(errs, fmt.Errorf("duplicate tag '%s'", key))
			continue
		}
		tags[key] = strings.TrimSpace(value)
	}
	return tags, errs
}

func parseColumn(entity *EntityMetadata, field reflect.StructField, index int, tags map[string]string) (*ColumnMetadata, []error) {
	if len(tags) == 0 && !mappedByDefault(field.Type) {
		return nil, nil
	}

	col := &ColumnMetadata{
		Entity:     entity,
		FieldName:  field.Name,
		FieldType:  field.Type,
		FieldIndex: index,
		ColumnName: strcase.ToSnake(field.Name),
		IsNullable: isTypeNullable(field.Type),
	}

	var errs []error
	for key, value := range tags {
		switch key {
		case "column":
			col.ColumnName = value
		case "type":
			col.DBType = value
		case "size":
			n, err := strconv.Atoi(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("error parsing 'size' (%s) on field %s.%s: %w", value, entity.Name, field.Name, err))
				continue
			}
			col.Size = n
		case "primarykey", "pk":
			col.IsPrimaryKey = true
		case "autoincrement", "auto_increment", "serial":
			col.IsAutoIncrement = true
		case "notnull", "not_null", "nullable", "default":
		case "unique":
			col.IsUnique = true
		case "json":
			col.IsJSON = true
		case "title":
			entity.TitleColumn = col
		case "group":
			entity.GroupColumn = col
		case "display":
			entity.DisplayColumn = col
		default:
			errs = append(errs, fmt.Errorf("unknown tag '%s' on field %s.%s", key, entity.Name, field.Name))
		}
	}

	// Nullability flags are applied after the loop so the primary key wins
	// regardless of map order.
	if _, ok := tags["nullable"]; ok {
		col.IsNullable = true
	}
	if _, ok := tags["notnull"]; ok {
		col.IsNullable = false
	}
	if _, ok := tags["not_null"]; ok {
		col.IsNullable = false
	}
	if col.IsPrimaryKey {
		col.IsNullable = false
	}
	if v, ok := tags["default"]; ok {
		col.DefaultValue = v
	}
	return col, errs
}

// mappedByDefault reports whether an untagged field becomes a column:
// basic kinds, time.Time, sql.Null* and []byte, directly or behind a pointer.
func mappedByDefault(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
		if t.Kind() == reflect.Slice {
			return false
		}
	}
	switch t.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return true
	case reflect.Struct:
		switch t {
		case timeType, nullStringType, nullInt64Type, nullFloat64Type, nullBoolType, nullTimeType:
			return true
		}
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8
	}
	return false
}

func parseRelation(entity *EntityMetadata, field reflect.StructField, tags map[string]string) (*RelationMetadata, []error) {
	rel := &RelationMetadata{
		Entity:       entity,
		FieldName:    field.Name,
		FieldType:    field.Type,
		RelationType: RelationType(tags["relation"]),
	}
	where := entity.Name + "." + field.Name

	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format+" on field "+where, args...))
	}

	switch rel.RelationType {
	case OneToOne, OneToMany, ManyToOne, ManyToMany:
	default:
		fail("invalid relation type '%s'", rel.RelationType)
		return nil, errs
	}

	for key, value := range tags {
		switch key {
		case "relation":
		case "joincolumn", "join_column":
			jc, ok := parseJoinColumn(value)
			if !ok {
				fail("empty joinColumn name")
				continue
			}
			rel.JoinColumns = append(rel.JoinColumns, jc)
			rel.IsOwningSide = true
		case "inversejoincolumn", "inverse_join_column":
			jc, ok := parseJoinColumn(value)
			if !ok {
				fail("empty inverseJoinColumn name")
				continue
			}
			rel.InverseJoinColumns = append(rel.InverseJoinColumns, jc)
		case "mappedby", "mapped_by":
			rel.MappedByFieldName = value
		case "jointable", "join_table":
			rel.JoinTableName = value
			rel.IsOwningSide = true
		case "sortcolumn", "sort_column":
			rel.SortColumn = value
		default:
			fail("unknown relation tag '%s'", key)
		}
	}

	target := field.Type
	if target.Kind() == reflect.Ptr || target.Kind() == reflect.Slice {
		target = target.Elem()
		if target.Kind() == reflect.Ptr {
			target = target.Elem()
		}
	}
	if target.Kind() != reflect.Struct {
		fail("relation must be a struct, a pointer or a slice of them, got %s", target.Kind())
	} else {
		rel.TargetEntityType = target
		rel.TargetEntityName = target.Name()
	}

	if len(rel.JoinColumns) > 0 && rel.MappedByFieldName != "" {
		fail("conflicting tags 'joinColumn' and 'mappedBy'")
	}
	if rel.RelationType != ManyToMany {
		if rel.JoinTableName != "" {
			fail("tag 'joinTable' is only valid for ManyToMany")
		}
		if len(rel.InverseJoinColumns) > 0 || rel.SortColumn != "" {
			fail("tags 'inverseJoinColumn' and 'sortColumn' are only valid for ManyToMany")
		}
	}

	switch rel.RelationType {
	case OneToOne:
		if rel.IsOwningSide && len(rel.JoinColumns) == 0 {
			fail("owning side of OneToOne requires 'joinColumn'")
		}
		if !rel.IsOwningSide && rel.MappedByFieldName == "" {
			fail("inverse side of OneToOne requires 'mappedBy'")
		}
	case ManyToOne:
		if len(rel.JoinColumns) == 0 {
			fail("ManyToOne requires 'joinColumn'")
		}
		if rel.MappedByFieldName != "" {
			fail("ManyToOne must not have 'mappedBy'")
		}
	case OneToMany:
		if rel.MappedByFieldName == "" {
			fail("OneToMany requires 'mappedBy'")
		}
	case ManyToMany:
		switch {
		case rel.MappedByFieldName == "" && rel.JoinTableName == "":
			fail("owning side of ManyToMany requires 'joinTable'")
		case rel.MappedByFieldName != "" && rel.JoinTableName != "":
			fail("inverse side (mappedBy) of ManyToMany must not have 'joinTable'")
		case rel.MappedByFieldName != "" && (len(rel.InverseJoinColumns) > 0 || rel.SortColumn != ""):
			fail("inverse side of ManyToMany must not have 'inverseJoinColumn' or 'sortColumn'")
		}
		if rel.JoinTableName != "" && len(errs) == 0 {
			if len(rel.JoinColumns) == 0 {
				rel.JoinColumns = []*JoinColumnMetadata{{ColumnName: strcase.ToSnake(entity.Name) + "_id", ReferencedColumnName: "id"}}
			}
			if len(rel.InverseJoinColumns) == 0 {
				rel.InverseJoinColumns = []*JoinColumnMetadata{{ColumnName: strcase.ToSnake(rel.TargetEntityName) + "_id", ReferencedColumnName: "id"}}
			}
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return rel, nil
}

// parseJoinColumn reads "column" or "column:referenced". The referenced
// column defaults to "id".
func parseJoinColumn(value string) (*JoinColumnMetadata, bool) {
	name, ref, found := strings.Cut(value, ":")
	jc := &JoinColumnMetadata{ColumnName: strings.TrimSpace(name), ReferencedColumnName: "id"}
	if found && strings.TrimSpace(ref) != "" {
		jc.ReferencedColumnName = strings.TrimSpace(ref)
	}
	return jc, jc.ColumnName != ""
}

// isTypeNullable infers default nullability: reference kinds and sql.Null*
// types are nullable, value types are not.
func isTypeNullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return true
	}
	switch t {
	case nullStringType, nullInt64Type, nullFloat64Type, nullBoolType, nullTimeType:
		return true
	}
	return false
}
