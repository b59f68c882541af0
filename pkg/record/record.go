// Package record holds the attribute bag of a single row as it travels
// between the HTTP layer, the field configurators and the repository.
package record

import "strings"

// Record maps column or attribute names to values.
type Record map[string]any

// Get returns the value stored under path. Path segments may be separated by
// "->" (JSON column access) or ".", and descend into nested maps.
func (r Record) Get(path string) (any, bool) {
	if r == nil {
		return nil, false
	}
	if v, ok := r[path]; ok {
		return v, true
	}

	segments := strings.Split(strings.ReplaceAll(path, "->", "."), ".")
	var current any = map[string]any(r)
	for _, seg := range segments {
		switch m := current.(type) {
		case map[string]any:
			v, ok := m[seg]
			if !ok {
				return nil, false
			}
			current = v
		case Record:
			v, ok := m[seg]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	return current, true
}

// Has reports whether the top-level attribute is present, even if nil.
func (r Record) Has(attribute string) bool {
	_, ok := r[attribute]
	return ok
}

// Set stores value under attribute.
func (r Record) Set(attribute string, value any) {
	r[attribute] = value
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
