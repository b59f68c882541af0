package relation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/chmenegatti/multiselect/pkg/dialects/common"
)

// SQLStore keeps pivot rows in a relational join table.
type SQLStore struct {
	ds     common.DataSource
	logger *slog.Logger
}

var _ PivotStore = (*SQLStore)(nil)

func NewSQLStore(ds common.DataSource, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{ds: ds, logger: logger.With("store", "sql")}
}

func (s *SQLStore) Related(ctx context.Context, pivot Pivot, parentID any) ([]any, error) {
	return s.related(ctx, s.ds, pivot, parentID)
}

func (s *SQLStore) related(ctx context.Context, q common.Executor, pivot Pivot, parentID any) ([]any, error) {
	d := s.ds.Dialect()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		d.Quote(pivot.RelatedKey), d.Quote(pivot.Table), d.Quote(pivot.ForeignKey), d.BindVar(1))
	if pivot.SortColumn != "" {
		query += " ORDER BY " + d.Quote(pivot.SortColumn)
	}

	rows, err := q.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", pivot.Table, err)
	}
	defer rows.Close()

	ids := []any{}
	for rows.Next() {
		var id any
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s.%s: %w", pivot.Table, pivot.RelatedKey, err)
		}
		ids = append(ids, NormalizeID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", pivot.Table, err)
	}
	return ids, nil
}

// Attach inserts the links that do not exist yet, inside one transaction.
func (s *SQLStore) Attach(ctx context.Context, pivot Pivot, parentID any, ids []any) (err error) {
	tx, err := s.ds.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Warn("rollback failed", "table", pivot.Table, "error", rbErr)
			}
		}
	}()

	existing, err := s.related(ctx, tx, pivot, parentID)
	if err != nil {
		return err
	}
	have := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		have[Key(id)] = struct{}{}
	}

	d := s.ds.Dialect()
	insert, _ := d.InsertSQL(pivot.Table, []string{pivot.ForeignKey, pivot.RelatedKey}, "")
	inserted := 0
	for _, id := range ids {
		if _, ok := have[Key(id)]; ok {
			continue
		}
		if _, err = tx.Exec(ctx, insert, parentID, id); err != nil {
			return fmt.Errorf("insert into %s: %w", pivot.Table, err)
		}
		have[Key(id)] = struct{}{}
		inserted++
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", pivot.Table, err)
	}
	s.logger.Debug("attached", "table", pivot.Table, "parent", parentID, "inserted", inserted, "kept", len(existing))
	return nil
}

func (s *SQLStore) Detach(ctx context.Context, pivot Pivot, parentID any, ids []any) error {
	if len(ids) == 0 {
		return nil
	}
	d := s.ds.Dialect()
	marks := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, parentID)
	for i, id := range ids {
		marks[i] = d.BindVar(i + 2)
		args = append(args, id)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s AND %s IN (%s)",
		d.Quote(pivot.Table), d.Quote(pivot.ForeignKey), d.BindVar(1), d.Quote(pivot.RelatedKey), strings.Join(marks, ", "))

	res, err := s.ds.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", pivot.Table, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.logger.Debug("detached", "table", pivot.Table, "parent", parentID, "deleted", n)
	}
	return nil
}

func (s *SQLStore) SetSortOrder(ctx context.Context, pivot Pivot, parentID, id any, position int) error {
	d := s.ds.Dialect()
	query := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s AND %s = %s",
		d.Quote(pivot.Table),
		d.Quote(pivot.SortColumnOrDefault()), d.BindVar(1),
		d.Quote(pivot.ForeignKey), d.BindVar(2),
		d.Quote(pivot.RelatedKey), d.BindVar(3))
	if _, err := s.ds.Exec(ctx, query, position, parentID, id); err != nil {
		return fmt.Errorf("update %s: %w", pivot.Table, err)
	}
	return nil
}

// NormalizeID maps driver-specific id representations onto int64 or string.
func NormalizeID(v any) any {
	switch id := v.(type) {
	case []byte:
		s := string(id)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		return s
	case int:
		return int64(id)
	case int32:
		return int64(id)
	case uint32:
		return int64(id)
	case uint64:
		if id <= 1<<63-1 {
			return int64(id)
		}
	}
	return v
}
