// Package field implements the multiselect form field: its declarative
// configuration, the read and write paths between a record attribute and
// the submitted value, and its authorization rule.
package field

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/iancoleman/strcase"

	"github.com/chmenegatti/multiselect/pkg/auth"
	"github.com/chmenegatti/multiselect/pkg/record"
	"github.com/chmenegatti/multiselect/pkg/relation"
)

// Component is the UI component identity of the field.
const Component = "multiselect-field"

// Mode is how a field stores its value. A field has exactly one.
type Mode int

const (
	// ModeJSONText stores the selection as JSON text (the default).
	ModeJSONText Mode = iota
	// ModeJSONColumn stores the selection as a native JSON value.
	ModeJSONColumn
	// ModeScalar stores one raw value (single-select).
	ModeScalar
	// ModeRelationship stores the selection as pivot rows.
	ModeRelationship
)

func (m Mode) String() string {
	switch m {
	case ModeJSONColumn:
		return "json-column"
	case ModeScalar:
		return "scalar"
	case ModeRelationship:
		return "relationship"
	default:
		return "json-text"
	}
}

// ResponseResolver transforms a decoded value before it is handed to a
// page consumer. template is whatever the caller renders with.
type ResponseResolver func(value, template any) any

// VisibilityFunc decides whether the field is shown for a request.
type VisibilityFunc func(req auth.Request) bool

// Multiselect is an immutable field configuration. Every builder method
// returns a modified copy and leaves the receiver untouched.
type Multiselect struct {
	name      string
	attribute string
	options   Options

	saveAsJSON       bool
	singleSelect     bool
	reorderable      bool
	groupSelect      bool
	groupRelations   bool
	fromRelationship bool
	target           string

	dependsOn        string
	dependsOnOptions map[string]Options
	max              int
	placeholder      string
	optionsLimit     int

	responseResolver ResponseResolver
	canSee           VisibilityFunc
}

// New declares a field labelled name. The attribute defaults to the
// snake_case form of name.
func New(name string, attribute ...string) Multiselect {
	attr := strcase.ToSnake(name)
	if len(attribute) > 0 && attribute[0] != "" {
		attr = attribute[0]
	}
	return Multiselect{name: name, attribute: attr, options: NormalizeOptions(nil)}
}

func (f Multiselect) Name() string      { return f.name }
func (f Multiselect) Attribute() string { return f.attribute }
func (f Multiselect) Component() string { return Component }

// Target is the name of the related resource type in relationship mode.
func (f Multiselect) Target() string { return f.target }

// Relationship is the relationship name, which is the attribute.
func (f Multiselect) Relationship() string {
	if !f.fromRelationship {
		return ""
	}
	return f.attribute
}

func (f Multiselect) IsReorderable() bool { return f.reorderable }

// OptionList returns the normalized option list.
func (f Multiselect) OptionList() Options { return f.options }

// Mode resolves the persistence mode. Relationship wins over single-select,
// which wins over the JSON column.
func (f Multiselect) Mode() Mode {
	switch {
	case f.fromRelationship:
		return ModeRelationship
	case f.singleSelect:
		return ModeScalar
	case f.saveAsJSON:
		return ModeJSONColumn
	default:
		return ModeJSONText
	}
}

// Options sets the static choices.
func (f Multiselect) Options(choices ...Choice) Multiselect {
	f.options = NormalizeOptions(append([]Choice(nil), choices...))
	return f
}

// OptionsFunc sets the choices from a provider, called once now. A nil
// provider or a nil result gives an empty list.
func (f Multiselect) OptionsFunc(provider func() []Choice) Multiselect {
	var choices []Choice
	if provider != nil {
		choices = provider()
	}
	return f.Options(choices...)
}

func (f Multiselect) SaveAsJSON(on bool) Multiselect     { f.saveAsJSON = on; return f }
func (f Multiselect) SingleSelect(on bool) Multiselect   { f.singleSelect = on; return f }
func (f Multiselect) Reorderable(on bool) Multiselect    { f.reorderable = on; return f }
func (f Multiselect) GroupSelect(on bool) Multiselect    { f.groupSelect = on; return f }
func (f Multiselect) GroupRelations(on bool) Multiselect { f.groupRelations = on; return f }
func (f Multiselect) DependsOn(other string) Multiselect { f.dependsOn = other; return f }
func (f Multiselect) Max(n int) Multiselect              { f.max = n; return f }
func (f Multiselect) Placeholder(s string) Multiselect   { f.placeholder = s; return f }
func (f Multiselect) OptionsLimit(n int) Multiselect     { f.optionsLimit = n; return f }

// DependsOnOptions sets the option list to use for each value of the field
// named by DependsOn.
func (f Multiselect) DependsOnOptions(byValue map[string][]Choice) Multiselect {
	f.dependsOnOptions = make(map[string]Options, len(byValue))
	for k, choices := range byValue {
		f.dependsOnOptions[k] = NormalizeOptions(append([]Choice(nil), choices...))
	}
	return f
}

// FromRelationship switches the field to relationship mode against the
// resource type named target.
func (f Multiselect) FromRelationship(target string) Multiselect {
	f.fromRelationship = true
	f.target = target
	return f
}

// ResolveForPageResponseUsing installs the transform applied by
// ResolveResponseValue.
func (f Multiselect) ResolveForPageResponseUsing(fn ResponseResolver) Multiselect {
	f.responseResolver = fn
	return f
}

// CanSee installs the visibility predicate. Without one the field is visible.
func (f Multiselect) CanSee(fn VisibilityFunc) Multiselect {
	f.canSee = fn
	return f
}

// Meta is the UI configuration of the field.
func (f Multiselect) Meta() map[string]any {
	meta := map[string]any{"options": f.options}
	if f.reorderable {
		meta["reorderable"] = true
	}
	if f.singleSelect {
		meta["singleSelect"] = true
	}
	if f.groupSelect {
		meta["groupSelect"] = true
	}
	if f.groupRelations {
		meta["groupRelations"] = true
	}
	if f.fromRelationship {
		meta["fromRelationship"] = true
	}
	if f.dependsOn != "" {
		meta["dependsOn"] = f.dependsOn
	}
	if f.dependsOnOptions != nil {
		meta["dependsOnOptions"] = maps.Clone(f.dependsOnOptions)
	}
	if f.max > 0 {
		meta["max"] = f.max
	}
	if f.placeholder != "" {
		meta["placeholder"] = f.placeholder
	}
	if f.optionsLimit > 0 {
		meta["optionsLimit"] = f.optionsLimit
	}
	return meta
}

func (f Multiselect) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Component string         `json:"component"`
		Name      string         `json:"name"`
		Attribute string         `json:"attribute"`
		Meta      map[string]any `json:"meta"`
	}{Component, f.name, f.attribute, f.Meta()})
}

// Resolve reads the field's value from rec. Only the JSON-text mode decodes;
// every other mode returns the stored value as is.
func (f Multiselect) Resolve(rec record.Record) (any, error) {
	value, _ := rec.Get(f.attribute)
	if f.Mode() != ModeJSONText {
		return value, nil
	}
	decoded, err := decode(value)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.attribute, err)
	}
	return decoded, nil
}

// Fill writes the submitted value for this field from input into rec.
//
// In relationship mode rec is left alone and the decoded association change
// is returned for the caller to apply once the row has an id.
func (f Multiselect) Fill(input, rec record.Record) (*relation.Change, error) {
	value, _ := input.Get(f.attribute)

	switch f.Mode() {
	case ModeRelationship:
		change, err := relation.ChangeFromValue(value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.attribute, err)
		}
		return &change, nil
	case ModeScalar, ModeJSONColumn:
		rec.Set(f.attribute, value)
	default:
		text, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("field %s: encode value: %w", f.attribute, err)
		}
		rec.Set(f.attribute, string(text))
	}
	return nil, nil
}

// ResolveResponseValue decodes a stored value for a page consumer and runs
// it through the ResolveForPageResponseUsing transform, if any.
func (f Multiselect) ResolveResponseValue(value, template any) (any, error) {
	var parsed any
	if value != nil {
		if f.saveAsJSON {
			parsed = value
		} else {
			var err error
			if parsed, err = decode(value); err != nil {
				return nil, fmt.Errorf("field %s: %w", f.attribute, err)
			}
		}
	}
	if f.responseResolver != nil {
		return f.responseResolver(parsed, template), nil
	}
	return parsed, nil
}

// IsVisible applies the CanSee predicate alone.
func (f Multiselect) IsVisible(req auth.Request) bool {
	return f.canSee == nil || f.canSee(req)
}

// Authorize decides whether the principal may use the field. Relationship
// fields on create, attach, update and update-attached screens need the
// "attachAny<Target>" ability on the parent model.
func (f Multiselect) Authorize(req auth.Request) bool {
	authorized := true
	if f.fromRelationship && (req.IsCreateOrAttach() || req.IsUpdateOrUpdateAttached()) {
		authorized = req.Can("attachAny"+f.target, req.Model)
	}
	return authorized && f.IsVisible(req)
}
