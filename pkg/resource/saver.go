package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chmenegatti/multiselect/pkg/auth"
	"github.com/chmenegatti/multiselect/pkg/field"
	"github.com/chmenegatti/multiselect/pkg/record"
	"github.com/chmenegatti/multiselect/pkg/relation"
)

// Phase names a step of Save.
type Phase string

const (
	PhaseFill      Phase = "fill"
	PhaseRow       Phase = "row"
	PhaseRelations Phase = "relations"
)

// SaveError reports the phase a save failed in. A failure in PhaseRelations
// means the row was written but some relationship changes were not applied.
type SaveError struct {
	Phase Phase
	ID    any
	Err   error
}

func (e *SaveError) Error() string {
	if e.Phase == PhaseRelations {
		return fmt.Sprintf("save %s phase (row %v already written): %v", e.Phase, e.ID, e.Err)
	}
	return fmt.Sprintf("save %s phase: %v", e.Phase, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// Saver persists submitted input in two explicit phases: the row first, then
// every relationship change against the row's key. The phases do not share
// a transaction.
type Saver struct {
	repo   *Repository
	pivots relation.PivotStore
	logger *slog.Logger
}

func NewSaver(repo *Repository, pivots relation.PivotStore, logger *slog.Logger) *Saver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saver{repo: repo, pivots: pivots, logger: logger.With("component", "saver")}
}

// Save creates a row when id is nil and updates row id otherwise. Only
// attributes present in input are written. It returns the row's key as
// stored, so an update addressed by "7" reports and links int64(7).
func (s *Saver) Save(ctx context.Context, req auth.Request, t *Type, id any, input record.Record) (any, error) {
	if id != nil {
		row, err := s.repo.Find(ctx, t, id)
		if err != nil {
			return nil, &SaveError{Phase: PhaseFill, Err: err}
		}
		if key, ok := row[t.PrimaryKeyColumn()]; ok && key != nil {
			id = key
		}
	}

	rec, changes, err := s.fill(req, t, input)
	if err != nil {
		return nil, &SaveError{Phase: PhaseFill, Err: err}
	}

	if id == nil {
		if id, err = s.repo.Insert(ctx, t, rec); err != nil {
			return nil, &SaveError{Phase: PhaseRow, Err: err}
		}
	} else if err := s.repo.Update(ctx, t, id, rec); err != nil {
		return nil, &SaveError{Phase: PhaseRow, Err: err}
	}

	for _, ch := range changes {
		pivot, ok := t.Pivot(ch.field.Attribute())
		if !ok {
			return id, &SaveError{Phase: PhaseRelations, ID: id, Err: fmt.Errorf("%s: no pivot table", ch.field.Attribute())}
		}
		if err := relation.Apply(ctx, s.pivots, pivot, id, ch.change, ch.field.IsReorderable()); err != nil {
			return id, &SaveError{Phase: PhaseRelations, ID: id, Err: fmt.Errorf("%s: %w", ch.field.Attribute(), err)}
		}
		s.logger.Debug("relationship applied", "resource", t.Key, "id", id, "relationship", ch.field.Attribute(),
			"attached", len(ch.change.Attach), "detached", len(ch.change.Detach))
	}
	return id, nil
}

type pendingChange struct {
	field  field.Multiselect
	change relation.Change
}

// fill builds the row from input and collects the relationship changes.
func (s *Saver) fill(req auth.Request, t *Type, input record.Record) (record.Record, []pendingChange, error) {
	rec := record.Record{}
	pk := t.PrimaryKeyColumn()
	for _, c := range t.Columns {
		if c == pk || hasField(t, c) {
			continue
		}
		if v, ok := input[c]; ok {
			rec[c] = v
		}
	}

	var changes []pendingChange
	for _, f := range t.Fields.Fields() {
		if _, present := input.Get(f.Attribute()); !present {
			continue
		}
		if !f.Authorize(req) {
			return nil, nil, fmt.Errorf("field %s: %w", f.Attribute(), ErrForbidden)
		}
		change, err := f.Fill(input, rec)
		if err != nil {
			return nil, nil, err
		}
		if change != nil {
			changes = append(changes, pendingChange{field: f, change: *change})
		}
	}
	return rec, changes, nil
}

func hasField(t *Type, attribute string) bool {
	_, ok := t.Fields.Lookup(attribute)
	return ok
}

// Load reads row id and fills every relationship attribute with the related
// ids held in the pivot store, ready for field.Resolve.
func (s *Saver) Load(ctx context.Context, t *Type, id any) (record.Record, error) {
	rec, err := s.repo.Find(ctx, t, id)
	if err != nil {
		return nil, err
	}
	for _, f := range t.Fields.Fields() {
		if f.Mode() != field.ModeRelationship {
			continue
		}
		pivot, ok := t.Pivot(f.Attribute())
		if !ok {
			return nil, fmt.Errorf("%s: relationship %q has no pivot table", t.Key, f.Attribute())
		}
		ids, err := s.pivots.Related(ctx, pivot, rec[t.PrimaryKeyColumn()])
		if err != nil {
			return nil, fmt.Errorf("%s %v: load %s: %w", t.Key, id, f.Attribute(), err)
		}
		rec[f.Attribute()] = ids
	}
	return rec, nil
}

// IsNotFound reports whether err means a missing resource, type or field.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnknownResource)
}
