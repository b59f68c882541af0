// Package resource describes the admin resources that carry multiselect
// fields: their types and field registries, the SQL repository behind them,
// and the two-phase save that persists relationship changes.
package resource

import (
	"errors"
	"fmt"

	"github.com/chmenegatti/multiselect/pkg/field"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrUnknownResource is returned for a resource key or name that is not
	// in the catalog.
	ErrUnknownResource = errors.New("unknown resource")
	// ErrForbidden is returned when the principal may not write a field.
	ErrForbidden = errors.New("forbidden")
)

// Registry maps attributes to the multiselect fields declared on a resource
// type. It is built once and read-only afterwards.
type Registry struct {
	byAttribute map[string]field.Multiselect
	order       []string
}

// NewRegistry indexes fields by attribute. Two fields on the same attribute
// are rejected.
func NewRegistry(fields ...field.Multiselect) (*Registry, error) {
	r := &Registry{byAttribute: make(map[string]field.Multiselect, len(fields))}
	for _, f := range fields {
		attr := f.Attribute()
		if attr == "" {
			return nil, fmt.Errorf("field %q has no attribute", f.Name())
		}
		if _, dup := r.byAttribute[attr]; dup {
			return nil, fmt.Errorf("duplicate field for attribute %q", attr)
		}
		r.byAttribute[attr] = f
		r.order = append(r.order, attr)
	}
	return r, nil
}

// Lookup returns the field declared on attribute.
func (r *Registry) Lookup(attribute string) (field.Multiselect, bool) {
	if r == nil {
		return field.Multiselect{}, false
	}
	f, ok := r.byAttribute[attribute]
	return f, ok
}

// Relationship returns the multiselect field that manages the named
// relationship. Fields in other modes never match.
func (r *Registry) Relationship(name string) (field.Multiselect, bool) {
	f, ok := r.Lookup(name)
	if !ok || f.Component() != field.Component || f.Mode() != field.ModeRelationship {
		return field.Multiselect{}, false
	}
	return f, true
}

// Fields returns the fields in declaration order.
func (r *Registry) Fields() []field.Multiselect {
	if r == nil {
		return nil
	}
	out := make([]field.Multiselect, 0, len(r.order))
	for _, attr := range r.order {
		out = append(out, r.byAttribute[attr])
	}
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
