// Package relation handles many-to-many associations: the change set
// submitted by a relationship field, the pivot-table stores that persist
// it, and Apply, which runs a change against a store once the owning row
// has an id.
package relation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// DefaultSortColumn is the pivot column used for reorderable relationships
// when the pivot does not name one.
const DefaultSortColumn = "sort_order"

// ErrDecode marks a relationship payload that could not be decoded.
var ErrDecode = errors.New("malformed relationship payload")

// Pivot describes the join table behind a relationship.
type Pivot struct {
	Table      string
	ForeignKey string // column referencing the owning row
	RelatedKey string // column referencing the related row
	SortColumn string
}

// SortColumnOrDefault returns the configured sort column or DefaultSortColumn.
func (p Pivot) SortColumnOrDefault() string {
	if p.SortColumn != "" {
		return p.SortColumn
	}
	return DefaultSortColumn
}

// Change is the association diff submitted for one relationship field.
type Change struct {
	Attach []any `json:"attach"`
	Detach []any `json:"detach"`
}

// IsEmpty reports whether the change would do nothing.
func (c Change) IsEmpty() bool {
	return len(c.Attach) == 0 && len(c.Detach) == 0
}

// DecodeChange parses a `{"attach": [...], "detach": [...]}` payload. Both
// keys are required; a null list counts as empty. Integral numbers become
// int64, other numbers float64.
func DecodeChange(payload string) (Change, error) {
	if !gjson.Valid(payload) {
		return Change{}, fmt.Errorf("%w: invalid JSON", ErrDecode)
	}
	doc := gjson.Parse(payload)
	if !doc.IsObject() {
		return Change{}, fmt.Errorf("%w: expected an object, got %s", ErrDecode, doc.Type)
	}

	attach, err := idList(doc, "attach")
	if err != nil {
		return Change{}, err
	}
	detach, err := idList(doc, "detach")
	if err != nil {
		return Change{}, err
	}
	return Change{Attach: attach, Detach: detach}, nil
}

// ChangeFromValue accepts the forms a relationship payload arrives in: the
// JSON string a form posts, raw bytes, or an object already decoded from a
// JSON request body.
func ChangeFromValue(v any) (Change, error) {
	switch p := v.(type) {
	case string:
		return DecodeChange(p)
	case []byte:
		return DecodeChange(string(p))
	case json.RawMessage:
		return DecodeChange(string(p))
	case Change:
		return p, nil
	case nil:
		return Change{}, fmt.Errorf("%w: empty payload", ErrDecode)
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return Change{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return DecodeChange(string(b))
	}
}

func idList(doc gjson.Result, key string) ([]any, error) {
	r := doc.Get(key)
	if !r.Exists() {
		return nil, fmt.Errorf("%w: missing %q", ErrDecode, key)
	}
	if r.Type == gjson.Null {
		return []any{}, nil
	}
	if !r.IsArray() {
		return nil, fmt.Errorf("%w: %q must be a list", ErrDecode, key)
	}
	ids := []any{}
	for _, item := range r.Array() {
		switch item.Type {
		case gjson.Number:
			ids = append(ids, number(item))
		case gjson.String:
			ids = append(ids, item.Str)
		default:
			return nil, fmt.Errorf("%w: %q holds a non-scalar id %s", ErrDecode, key, item.Raw)
		}
	}
	return ids, nil
}

func number(r gjson.Result) any {
	f := r.Num
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// Key normalizes an id for comparisons across drivers, so 7, int64(7) and
// "7" are the same related row.
func Key(id any) string {
	switch v := id.(type) {
	case []byte:
		return string(v)
	case float64:
		if v == math.Trunc(v) {
			return fmt.Sprintf("%d", int64(v))
		}
	case float32:
		if float64(v) == math.Trunc(float64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
	}
	return fmt.Sprint(id)
}

// PivotStore persists the rows of pivot tables.
type PivotStore interface {
	// Related lists the related ids linked to parentID, in sort order when
	// the pivot has a sort column.
	Related(ctx context.Context, pivot Pivot, parentID any) ([]any, error)
	// Attach links ids to parentID, keeping links that are not listed.
	Attach(ctx context.Context, pivot Pivot, parentID any, ids []any) error
	// Detach removes the links to ids.
	Detach(ctx context.Context, pivot Pivot, parentID any, ids []any) error
	// SetSortOrder writes the position of one existing link.
	SetSortOrder(ctx context.Context, pivot Pivot, parentID, id any, position int) error
}

// Apply runs change against store for parentID: attach first, then detach,
// then, when reorder is set, every attached id gets its position in the
// attach list as sort order. An id listed twice keeps its first position.
func Apply(ctx context.Context, store PivotStore, pivot Pivot, parentID any, change Change, reorder bool) error {
	attach := Unique(change.Attach)
	if len(attach) > 0 {
		if err := store.Attach(ctx, pivot, parentID, attach); err != nil {
			return fmt.Errorf("attach to %s: %w", pivot.Table, err)
		}
	}
	if detach := Unique(change.Detach); len(detach) > 0 {
		if err := store.Detach(ctx, pivot, parentID, detach); err != nil {
			return fmt.Errorf("detach from %s: %w", pivot.Table, err)
		}
	}
	if !reorder {
		return nil
	}
	if pivot.SortColumn == "" {
		pivot.SortColumn = DefaultSortColumn
	}
	seen := make(map[string]struct{}, len(attach))
	for position, id := range change.Attach {
		k := Key(id)
		if _, done := seen[k]; done {
			continue
		}
		seen[k] = struct{}{}
		if err := store.SetSortOrder(ctx, pivot, parentID, id, position); err != nil {
			return fmt.Errorf("reorder %s: %w", pivot.Table, err)
		}
	}
	return nil
}

// Unique drops repeated ids, keeping the first occurrence.
func Unique(ids []any) []any {
	seen := make(map[string]struct{}, len(ids))
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		k := Key(id)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, id)
	}
	return out
}
