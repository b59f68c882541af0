package resource

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/chmenegatti/multiselect/pkg/dialects/common"
)

// Query narrows the rows read from a resource table. Every method returns a
// modified copy. Construction errors are kept and reported when the query
// runs.
type Query struct {
	conditions []condition
	orders     []order
	limit      int
	err        error
}

type condition struct {
	column string
	op     string
	values []any
}

type order struct {
	column string
	desc   bool
}

var operators = []string{"=", "<>", "!=", "<", "<=", ">", ">=", "LIKE", "IN"}

// NewQuery returns a query selecting every row.
func NewQuery() Query { return Query{} }

// Where adds "column op value", joined with AND to earlier conditions.
func (q Query) Where(column, op string, value any) Query {
	op = strings.ToUpper(strings.TrimSpace(op))
	switch {
	case q.err != nil:
		return q
	case strings.TrimSpace(column) == "":
		q.err = errors.New("Where: column cannot be empty")
		return q
	case op == "IN":
		q.err = errors.New("Where: use WhereIn for IN conditions")
		return q
	case !slices.Contains(operators, op):
		q.err = fmt.Errorf("Where: unsupported operator %q", op)
		return q
	}
	q.conditions = append(slices.Clip(q.conditions), condition{column: column, op: op, values: []any{value}})
	return q
}

// WhereIn adds "column IN (values...)". An empty list matches nothing.
func (q Query) WhereIn(column string, values ...any) Query {
	if q.err != nil {
		return q
	}
	if strings.TrimSpace(column) == "" {
		q.err = errors.New("WhereIn: column cannot be empty")
		return q
	}
	q.conditions = append(slices.Clip(q.conditions), condition{column: column, op: "IN", values: slices.Clone(values)})
	return q
}

// OrderBy appends a sort key.
func (q Query) OrderBy(column string, desc bool) Query {
	if q.err != nil {
		return q
	}
	if strings.TrimSpace(column) == "" {
		q.err = errors.New("OrderBy: column cannot be empty")
		return q
	}
	q.orders = append(slices.Clip(q.orders), order{column: column, desc: desc})
	return q
}

// Limit caps the number of rows. n <= 0 removes the cap.
func (q Query) Limit(n int) Query {
	q.limit = n
	return q
}

// Err returns the first construction error.
func (q Query) Err() error { return q.err }

// build renders the SELECT for table.
func (q Query) build(d common.Dialect, table string) (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}

	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(d.Quote(table))

	var args []any
	for i, c := range q.conditions {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		if c.op != "IN" {
			args = append(args, c.values[0])
			fmt.Fprintf(&sb, "%s %s %s", d.Quote(c.column), c.op, d.BindVar(len(args)))
			continue
		}
		if len(c.values) == 0 {
			sb.WriteString("1 = 0")
			continue
		}
		marks := make([]string, len(c.values))
		for j, v := range c.values {
			args = append(args, v)
			marks[j] = d.BindVar(len(args))
		}
		fmt.Fprintf(&sb, "%s IN (%s)", d.Quote(c.column), strings.Join(marks, ", "))
	}

	for i, o := range q.orders {
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(d.Quote(o.column))
		if o.desc {
			sb.WriteString(" DESC")
		}
	}

	query := sb.String()
	if q.limit > 0 {
		query = d.Limit(query, len(q.orders) > 0, q.limit)
	}
	return query, args, nil
}
