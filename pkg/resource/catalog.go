package resource

import (
	"errors"
	"fmt"
	"slices"

	"github.com/chmenegatti/multiselect/pkg/config"
	"github.com/chmenegatti/multiselect/pkg/field"
	"github.com/chmenegatti/multiselect/pkg/relation"
)

// Catalog indexes resource types by URI key and by name.
type Catalog struct {
	byKey  map[string]*Type
	byName map[string]*Type
	types  []*Type
}

// NewCatalog validates types and indexes them. Validation checks that keys
// and names are unique and that every relationship field has a pivot table
// and a known target type. It also completes the types: reorderable pivots
// get the default sort column, and JSON-column fields are added to
// JSONColumns.
func NewCatalog(types ...*Type) (*Catalog, error) {
	c := &Catalog{
		byKey:  make(map[string]*Type, len(types)),
		byName: make(map[string]*Type, len(types)),
	}
	var errs []error
	for _, t := range types {
		switch {
		case t.Key == "" || t.Name == "" || t.Table == "":
			errs = append(errs, fmt.Errorf("resource %q: key, name and table are required", t.Key))
			continue
		case c.byKey[t.Key] != nil:
			errs = append(errs, fmt.Errorf("resource %q: duplicate key", t.Key))
			continue
		case c.byName[t.Name] != nil:
			errs = append(errs, fmt.Errorf("resource %q: duplicate name %q", t.Key, t.Name))
			continue
		}
		if t.Fields == nil {
			t.Fields, _ = NewRegistry()
		}
		c.byKey[t.Key] = t
		c.byName[t.Name] = t
		c.types = append(c.types, t)
	}

	for _, t := range c.types {
		for _, f := range t.Fields.Fields() {
			switch f.Mode() {
			case field.ModeJSONColumn:
				if !t.IsJSONColumn(f.Attribute()) {
					t.JSONColumns = append(t.JSONColumns, f.Attribute())
				}
			case field.ModeRelationship:
				pivot, ok := t.Pivot(f.Attribute())
				if !ok {
					errs = append(errs, fmt.Errorf("resource %q: relationship field %q has no pivot table", t.Key, f.Attribute()))
					continue
				}
				if c.byName[f.Target()] == nil {
					errs = append(errs, fmt.Errorf("resource %q: relationship field %q targets unknown resource %q", t.Key, f.Attribute(), f.Target()))
					continue
				}
				if f.IsReorderable() && pivot.SortColumn == "" {
					pivot.SortColumn = relation.DefaultSortColumn
					t.Relations[f.Attribute()] = pivot
				}
			}
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid resource catalog: %w", errors.Join(errs...))
	}
	return c, nil
}

// ByKey returns the type registered under the URI key.
func (c *Catalog) ByKey(key string) (*Type, error) {
	if t, ok := c.byKey[key]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownResource, key)
}

// ByName returns the type registered under name.
func (c *Catalog) ByName(name string) (*Type, error) {
	if t, ok := c.byName[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownResource, name)
}

// Types returns every type in registration order.
func (c *Catalog) Types() []*Type {
	return slices.Clone(c.types)
}

// Pivots lists the pivot tables of every type, ordered by type then
// relationship name.
func (c *Catalog) Pivots() []relation.Pivot {
	var out []relation.Pivot
	for _, t := range c.types {
		names := make([]string, 0, len(t.Relations))
		for name := range t.Relations {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			out = append(out, t.Relations[name])
		}
	}
	return out
}

// FromConfig builds a catalog from resource declarations.
func FromConfig(resources []config.ResourceConfig) (*Catalog, error) {
	types := make([]*Type, 0, len(resources))
	for _, rc := range resources {
		t := &Type{
			Name:          rc.Name,
			Key:           rc.Key,
			Model:         rc.Model,
			Table:         rc.Table,
			PrimaryKey:    rc.PrimaryKey,
			TitleColumn:   rc.TitleColumn,
			GroupColumn:   rc.GroupColumn,
			DisplayColumn: rc.DisplayColumn,
			Columns:       slices.Clone(rc.Columns),
			JSONColumns:   slices.Clone(rc.JSONColumns),
			Relations:     make(map[string]relation.Pivot, len(rc.Relations)),
		}
		for _, r := range rc.Relations {
			t.Relations[r.Name] = relation.Pivot{
				Table:      r.Table,
				ForeignKey: r.ForeignKey,
				RelatedKey: r.RelatedKey,
				SortColumn: r.SortColumn,
			}
		}

		fields := make([]field.Multiselect, 0, len(rc.Fields))
		for _, fc := range rc.Fields {
			fields = append(fields, FieldFromConfig(fc))
		}
		reg, err := NewRegistry(fields...)
		if err != nil {
			return nil, fmt.Errorf("resource %q: %w", rc.Key, err)
		}
		t.Fields = reg
		types = append(types, t)
	}
	return NewCatalog(types...)
}

// FieldFromConfig builds a multiselect field from its declaration.
func FieldFromConfig(fc config.FieldConfig) field.Multiselect {
	f := field.New(fc.Name, fc.Attribute).
		Options(choicesFromConfig(fc.Options)...).
		SaveAsJSON(fc.SaveAsJSON).
		SingleSelect(fc.SingleSelect).
		Reorderable(fc.Reorderable).
		GroupSelect(fc.GroupSelect).
		GroupRelations(fc.GroupRelations).
		DependsOn(fc.DependsOn).
		Max(fc.Max).
		Placeholder(fc.Placeholder).
		OptionsLimit(fc.OptionsLimit)
	if fc.Relationship != "" {
		f = f.FromRelationship(fc.Relationship)
	}
	if len(fc.DependsOnOptions) > 0 {
		byValue := make(map[string][]field.Choice, len(fc.DependsOnOptions))
		for _, d := range fc.DependsOnOptions {
			byValue[d.Value] = append(byValue[d.Value], choicesFromConfig(d.Options)...)
		}
		f = f.DependsOnOptions(byValue)
	}
	return f
}

func choicesFromConfig(options []config.OptionConfig) []field.Choice {
	choices := make([]field.Choice, 0, len(options))
	for _, o := range options {
		if o.Group != "" {
			choices = append(choices, field.Grouped(o.Value, o.Label, o.Group))
		} else {
			choices = append(choices, field.Label(o.Value, o.Label))
		}
	}
	return choices
}
