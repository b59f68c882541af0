// pkg/migration/runner.go
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chmenegatti/multiselect/pkg/config"
	"github.com/chmenegatti/multiselect/pkg/dialects/common"
)

const defaultTable = "schema_migrations"

// Record is one row of the history table.
type Record struct {
	ID        string
	AppliedAt string
}

// Status pairs a migration file with its history row, if any.
type Status struct {
	ID        string
	Name      string
	Applied   bool
	AppliedAt string
	Missing   bool // applied but the file is gone
}

// Runner applies the migration files of a directory and tracks them in a
// history table.
type Runner struct {
	ds     common.DataSource
	dir    string
	table  string
	logger *slog.Logger
	now    func() time.Time
}

func NewRunner(ds common.DataSource, cfg config.MigrationConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	table := cfg.TableName
	if table == "" {
		table = defaultTable
	}
	return &Runner{
		ds:     ds,
		dir:    cfg.Directory,
		table:  table,
		logger: logger.With("component", "migration"),
		now:    time.Now,
	}
}

// Create writes a new timestamped migration file and returns its path.
func (r *Runner) Create(name string, up, down []string) (string, error) {
	return create(r.dir, name, r.now(), up, down)
}

func create(dir, name string, now time.Time, up, down []string) (string, error) {
	if name == "" {
		return "", errors.New("migration name cannot be empty")
	}
	filename := fmt.Sprintf("%s_%s.sql", now.UTC().Format(idLayout), safeName(name))
	path := filepath.Join(dir, filename)

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create migration directory '%s': %w", dir, err)
	}
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("migration file '%s' already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed checking for existing file '%s': %w", path, err)
	}
	if err := os.WriteFile(path, []byte(Render(name, now, up, down)), 0644); err != nil {
		return "", fmt.Errorf("failed to create migration file '%s': %w", path, err)
	}
	return path, nil
}

func (r *Runner) ensureTable(ctx context.Context) error {
	d := r.ds.Dialect()
	ddl := d.CreateTableSQL(r.table, []string{
		d.Quote("id") + " VARCHAR(255) NOT NULL",
		d.Quote("applied_at") + " VARCHAR(64) NOT NULL",
		"PRIMARY KEY (" + d.Quote("id") + ")",
	})
	if _, err := r.ds.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create migration history table '%s': %w", r.table, err)
	}
	return nil
}

// Applied lists the history rows ordered by ID.
func (r *Runner) Applied(ctx context.Context) (out []Record, err error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	d := r.ds.Dialect()
	rows, err := r.ds.Query(ctx, fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s",
		d.Quote("id"), d.Quote("applied_at"), d.Quote(r.table), d.Quote("id")))
	if err != nil {
		return nil, fmt.Errorf("failed to query migration history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration history: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Up applies every pending migration in ID order and returns their IDs.
// Each migration runs in its own transaction together with its history row.
func (r *Runner) Up(ctx context.Context) ([]string, error) {
	files, err := LoadDir(r.dir)
	if err != nil {
		return nil, err
	}
	applied, err := r.Applied(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(applied))
	for _, a := range applied {
		done[a.ID] = true
	}

	var ids []string
	for _, m := range files {
		if done[m.ID] {
			continue
		}
		d := r.ds.Dialect()
		record := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, %s)",
			d.Quote(r.table), d.Quote("id"), d.Quote("applied_at"), d.BindVar(1), d.BindVar(2))
		if err := r.inTx(ctx, m, "Up", m.Up, record, m.ID, r.now().UTC().Format(time.RFC3339)); err != nil {
			return ids, err
		}
		r.logger.Info("migration applied", "id", m.ID, "name", m.Name)
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		r.logger.Info("no pending migrations")
	}
	return ids, nil
}

// Down reverts the last steps applied migrations, newest first.
func (r *Runner) Down(ctx context.Context, steps int) ([]string, error) {
	if steps < 1 {
		return nil, fmt.Errorf("steps must be positive, got %d", steps)
	}
	files, err := LoadDir(r.dir)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Migration, len(files))
	for _, m := range files {
		byID[m.ID] = m
	}
	applied, err := r.Applied(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	for i := len(applied) - 1; i >= 0 && len(ids) < steps; i-- {
		m, ok := byID[applied[i].ID]
		if !ok {
			return ids, fmt.Errorf("migration %s is applied but its file is missing from '%s'", applied[i].ID, r.dir)
		}
		d := r.ds.Dialect()
		forget := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", d.Quote(r.table), d.Quote("id"), d.BindVar(1))
		if err := r.inTx(ctx, m, "Down", m.Down, forget, m.ID); err != nil {
			return ids, err
		}
		r.logger.Info("migration reverted", "id", m.ID, "name", m.Name)
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// Status merges the directory listing with the history table.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	files, err := LoadDir(r.dir)
	if err != nil {
		return nil, err
	}
	applied, err := r.Applied(ctx)
	if err != nil {
		return nil, err
	}
	at := make(map[string]string, len(applied))
	for _, a := range applied {
		at[a.ID] = a.AppliedAt
	}

	out := make([]Status, 0, len(files))
	for _, m := range files {
		when, ok := at[m.ID]
		out = append(out, Status{ID: m.ID, Name: m.Name, Applied: ok, AppliedAt: when})
		delete(at, m.ID)
	}
	for _, a := range applied {
		if _, orphan := at[a.ID]; orphan {
			out = append(out, Status{ID: a.ID, Applied: true, AppliedAt: a.AppliedAt, Missing: true})
		}
	}
	return out, nil
}

// inTx runs stmts and the bookkeeping statement in one transaction.
func (r *Runner) inTx(ctx context.Context, m Migration, direction string, stmts []string, bookkeeping string, args ...any) (err error) {
	tx, err := r.ds.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %s: failed to begin transaction: %w", m.ID, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("rollback failed", "id", m.ID, "error", rbErr)
			}
		}
	}()

	for _, stmt := range stmts {
		if _, err = tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %s: failed to execute '%s' SQL: %w", m.ID, direction, err)
		}
	}
	if _, err = tx.Exec(ctx, bookkeeping, args...); err != nil {
		return fmt.Errorf("migration %s: failed to update history: %w", m.ID, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("migration %s: failed to commit: %w", m.ID, err)
	}
	return nil
}
