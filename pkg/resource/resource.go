package resource

import (
	"fmt"

	"github.com/chmenegatti/multiselect/pkg/record"
)

// Resource wraps a row for presentation.
type Resource struct {
	Type   *Type
	Record record.Record
}

func Wrap(t *Type, rec record.Record) Resource {
	return Resource{Type: t, Record: rec}
}

// Key returns the primary key value.
func (r Resource) Key() any {
	return r.Record[r.Type.PrimaryKeyColumn()]
}

// Title is the human-readable label. It falls back to the key when the type
// has no title column or the row has no value for it.
func (r Resource) Title() string {
	if r.Type.TitleColumn != "" {
		if v, ok := r.Record[r.Type.TitleColumn]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return fmt.Sprint(r.Key())
}

// OptionsGroup is the value of the group column, nil when there is none.
func (r Resource) OptionsGroup() any {
	if r.Type.GroupColumn == "" {
		return nil
	}
	return r.Record[r.Type.GroupColumn]
}

// Display returns the sort value of the row and whether it has one.
func (r Resource) Display() (any, bool) {
	if r.Type.DisplayColumn == "" {
		return nil, false
	}
	v, ok := r.Record[r.Type.DisplayColumn]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
