package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/chmenegatti/multiselect/pkg/dialects/common"
	"github.com/chmenegatti/multiselect/pkg/record"
	"github.com/chmenegatti/multiselect/pkg/relation"
)

// Repository reads and writes resource rows through a SQL data source.
type Repository struct {
	ds     common.DataSource
	logger *slog.Logger
}

func NewRepository(ds common.DataSource, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{ds: ds, logger: logger.With("component", "repository")}
}

// Find loads the row of t whose primary key is id.
func (r *Repository) Find(ctx context.Context, t *Type, id any) (record.Record, error) {
	rows, err := r.Select(ctx, t, NewQuery().Where(t.PrimaryKeyColumn(), "=", id).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s %v: %w", t.Key, id, ErrNotFound)
	}
	return rows[0], nil
}

// Select runs q against the table of t.
func (r *Repository) Select(ctx context.Context, t *Type, q Query) ([]record.Record, error) {
	query, args, err := q.build(r.ds.Dialect(), t.Table)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.Key, err)
	}
	r.logger.Debug("select", "resource", t.Key, "sql", query, "args", len(args))

	rows, err := r.ds.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.Key, err)
	}
	out, err := scanRecords(rows, t)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.Key, err)
	}
	return out, nil
}

// Insert writes rec as a new row and returns its primary key. A key present
// in rec is used as is; otherwise the generated one is read back.
func (r *Repository) Insert(ctx context.Context, t *Type, rec record.Record) (any, error) {
	pk := t.PrimaryKeyColumn()
	columns, args, err := r.columnsAndArgs(t, rec)
	if err != nil {
		return nil, err
	}
	if id, ok := rec[pk]; ok && id != nil {
		query, _ := r.ds.Dialect().InsertSQL(t.Table, columns, "")
		if _, err := r.ds.Exec(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("insert %s: %w", t.Key, err)
		}
		return id, nil
	}

	query, returnsKey := r.ds.Dialect().InsertSQL(t.Table, columns, pk)
	r.logger.Debug("insert", "resource", t.Key, "sql", query)
	if returnsKey {
		var id any
		if err := r.ds.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			return nil, fmt.Errorf("insert %s: %w", t.Key, err)
		}
		return relation.NormalizeID(id), nil
	}

	res, err := r.ds.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", t.Key, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert %s: driver did not return the generated key: %w", t.Key, err)
	}
	return id, nil
}

// Update writes the columns of rec onto the row with primary key id. An
// empty rec is a no-op.
func (r *Repository) Update(ctx context.Context, t *Type, id any, rec record.Record) error {
	pk := t.PrimaryKeyColumn()
	rec = rec.Clone()
	delete(rec, pk)

	columns, args, err := r.columnsAndArgs(t, rec)
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		return nil
	}

	d := r.ds.Dialect()
	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = fmt.Sprintf("%s = %s", d.Quote(c), d.BindVar(i+1))
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		d.Quote(t.Table), strings.Join(sets, ", "), d.Quote(pk), d.BindVar(len(columns)+1))
	r.logger.Debug("update", "resource", t.Key, "sql", query)

	if _, err := r.ds.Exec(ctx, query, append(args, id)...); err != nil {
		return fmt.Errorf("update %s %v: %w", t.Key, id, err)
	}
	return nil
}

// columnsAndArgs orders the columns of rec by name and encodes JSON columns.
func (r *Repository) columnsAndArgs(t *Type, rec record.Record) ([]string, []any, error) {
	columns := make([]string, 0, len(rec))
	for c := range rec {
		columns = append(columns, c)
	}
	slices.Sort(columns)

	args := make([]any, len(columns))
	for i, c := range columns {
		v := rec[c]
		if t.IsJSONColumn(c) {
			encoded, err := encodeJSONColumn(v)
			if err != nil {
				return nil, nil, fmt.Errorf("encode %s.%s: %w", t.Key, c, err)
			}
			v = encoded
		}
		args[i] = v
	}
	return columns, args, nil
}

// encodeJSONColumn casts a native value to JSON text for the driver. Text
// is assumed to be JSON already.
func encodeJSONColumn(v any) (any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case json.RawMessage:
		return string(v), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// scanRecords reads every row into a record. Driver byte slices become
// strings, the primary key is normalized, and JSON columns are decoded.
func scanRecords(rows common.Rows, t *Type) (out []record.Record, err error) {
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, errors.New("the query returned no columns")
	}

	pk := t.PrimaryKeyColumn()
	out = []record.Record{}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rec := make(record.Record, len(columns))
		for i, c := range columns {
			v := values[i]
			switch {
			case c == pk:
				v = relation.NormalizeID(v)
			case t.IsJSONColumn(c):
				if v, err = decodeJSONColumn(v); err != nil {
					return nil, fmt.Errorf("decode %s.%s: %w", t.Key, c, err)
				}
			default:
				if b, ok := v.([]byte); ok {
					v = string(b)
				}
			}
			rec[c] = v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func decodeJSONColumn(v any) (any, error) {
	switch raw := v.(type) {
	case nil:
		return nil, nil
	case string:
		return record.DecodeJSON([]byte(raw))
	case []byte:
		return record.DecodeJSON(raw)
	}
	return v, nil
}
