// Package attach resolves the candidates a relationship multiselect field
// can attach, and the ids a parent already has attached.
package attach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/chmenegatti/multiselect/pkg/auth"
	"github.com/chmenegatti/multiselect/pkg/field"
	"github.com/chmenegatti/multiselect/pkg/relation"
	"github.com/chmenegatti/multiselect/pkg/resource"
)

// ErrFieldNotFound is returned when the parent type has no visible
// relationship multiselect field for the requested relationship.
var ErrFieldNotFound = errors.New("relationship field not found")

// Option is one attachable candidate.
type Option struct {
	Label string `json:"label"`
	Value any    `json:"value"`
	Group any    `json:"group"`
}

// Filter decides whether a candidate is offered to the request.
type Filter func(req auth.Request, f field.Multiselect, candidate resource.Resource) bool

// AllowAll offers every candidate the relatable query returned.
func AllowAll(auth.Request, field.Multiselect, resource.Resource) bool { return true }

// CreateResponse is the payload for a parent that does not exist yet.
type CreateResponse struct {
	Available []Option `json:"available"`
}

// EditResponse adds the ids already attached to the parent.
type EditResponse struct {
	Selected  []any    `json:"selected"`
	Available []Option `json:"available"`
}

type Controller struct {
	catalog *resource.Catalog
	repo    *resource.Repository
	pivots  relation.PivotStore
	filter  Filter
	logger  *slog.Logger
}

type ControllerOption func(*Controller)

// WithFilter replaces the candidate filter. A nil filter restores AllowAll.
func WithFilter(f Filter) ControllerOption {
	return func(c *Controller) {
		if f == nil {
			f = AllowAll
		}
		c.filter = f
	}
}

func NewController(catalog *resource.Catalog, repo *resource.Repository, pivots relation.PivotStore, logger *slog.Logger, opts ...ControllerOption) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		catalog: catalog,
		repo:    repo,
		pivots:  pivots,
		filter:  AllowAll,
		logger:  logger.With("component", "attach"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create lists the candidates for a parent being created.
func (c *Controller) Create(ctx context.Context, req auth.Request, parentKey, relationship string) (CreateResponse, error) {
	parent, err := c.catalog.ByKey(parentKey)
	if err != nil {
		return CreateResponse{}, err
	}
	available, err := c.AvailableResources(ctx, req, parent, relationship)
	if err != nil {
		return CreateResponse{}, err
	}
	return CreateResponse{Available: available}, nil
}

// Edit lists the candidates and the ids attached to an existing parent.
func (c *Controller) Edit(ctx context.Context, req auth.Request, parentKey string, parentID any, relationship string) (EditResponse, error) {
	parent, err := c.catalog.ByKey(parentKey)
	if err != nil {
		return EditResponse{}, err
	}
	row, err := c.repo.Find(ctx, parent, parentID)
	if err != nil {
		return EditResponse{}, err
	}
	available, err := c.AvailableResources(ctx, req, parent, relationship)
	if err != nil {
		return EditResponse{}, err
	}

	pivot, ok := parent.Pivot(relationship)
	if !ok {
		return EditResponse{}, fmt.Errorf("%w: %s has no pivot for %q", ErrFieldNotFound, parent.Name, relationship)
	}
	selected, err := c.pivots.Related(ctx, pivot, row[parent.PrimaryKeyColumn()])
	if err != nil {
		return EditResponse{}, fmt.Errorf("related %s.%s: %w", parent.Name, relationship, err)
	}
	if selected == nil {
		selected = []any{}
	}
	return EditResponse{Selected: selected, Available: available}, nil
}

// AvailableResources runs the target's relatable query, filters the rows and
// maps them onto options ordered by the target's display column.
func (c *Controller) AvailableResources(ctx context.Context, req auth.Request, parent *resource.Type, relationship string) ([]Option, error) {
	f, ok := parent.Fields.Relationship(relationship)
	if !ok || !f.IsVisible(req) {
		return nil, fmt.Errorf("%w: %s.%s", ErrFieldNotFound, parent.Name, relationship)
	}
	target, err := c.catalog.ByName(f.Target())
	if err != nil {
		return nil, err
	}

	rows, err := c.repo.Select(ctx, target, target.RelatableCandidates(req))
	if err != nil {
		return nil, err
	}

	candidates := make([]resource.Resource, 0, len(rows))
	for _, row := range rows {
		r := resource.Wrap(target, row)
		if c.filter(req, f, r) {
			candidates = append(candidates, r)
		}
	}
	sortByDisplay(candidates)

	options := make([]Option, 0, len(candidates))
	for _, r := range candidates {
		options = append(options, Option{Label: r.Title(), Value: r.Key(), Group: r.OptionsGroup()})
	}
	c.logger.DebugContext(ctx, "resolved candidates",
		"parent", parent.Name, "relationship", relationship, "rows", len(rows), "available", len(options))
	return options, nil
}

// sortByDisplay is stable. Rows without a display value keep their order and
// come before rows that have one.
func sortByDisplay(rs []resource.Resource) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, aok := rs[i].Display()
		b, bok := rs[j].Display()
		if !aok || !bok {
			return !aok && bok
		}
		return less(a, b)
	})
}

// Display values of different kinds order numbers first, then times, then
// everything else as text.
const (
	rankNumber = iota
	rankTime
	rankText
)

func rank(v any) int {
	if _, ok := toFloat(v); ok {
		return rankNumber
	}
	if _, ok := v.(time.Time); ok {
		return rankTime
	}
	return rankText
}

func less(a, b any) bool {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra < rb
	}
	switch ra {
	case rankNumber:
		x, _ := toFloat(a)
		y, _ := toFloat(b)
		return x < y
	case rankTime:
		return a.(time.Time).Before(b.(time.Time))
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
