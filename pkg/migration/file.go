// pkg/migration/file.go
package migration

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	markerUp   = "-- +migrate Up"
	markerDown = "-- +migrate Down"

	idLayout = "20060102150405"
)

// Migration is one SQL file of the migration directory.
type Migration struct {
	ID   string // timestamp prefix of the file name
	Name string
	Path string
	Up   []string
	Down []string
}

// LoadDir reads every *.sql migration in dir, sorted by ID. A missing
// directory holds no migrations.
func LoadDir(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory '%s': %w", dir, err)
	}

	var out []Migration
	seen := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		id, name, ok := strings.Cut(strings.TrimSuffix(e.Name(), ".sql"), "_")
		if !ok || id == "" {
			return nil, fmt.Errorf("migration file '%s' must be named <id>_<name>.sql", e.Name())
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("migration id %s used by both '%s' and '%s'", id, prev, e.Name())
		}
		seen[id] = e.Name()

		path := filepath.Join(dir, e.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file '%s': %w", path, err)
		}
		up, down, err := Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", id, err)
		}
		out = append(out, Migration{ID: id, Name: name, Path: path, Up: up, Down: down})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Parse splits a migration file into the statements of its Up and Down
// sections. Statements end with a semicolon at the end of a line.
func Parse(content string) (up, down []string, err error) {
	var (
		section *[]string
		current strings.Builder
		sawUp   bool
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" && section != nil {
			*section = append(*section, stmt)
		}
		current.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.EqualFold(trimmed, markerUp):
			flush()
			section, sawUp = &up, true
			continue
		case strings.EqualFold(trimmed, markerDown):
			flush()
			section = &down
			continue
		case trimmed == "" || strings.HasPrefix(trimmed, "--"):
			continue
		}
		if section == nil {
			return nil, nil, fmt.Errorf("statement before '%s' marker", markerUp)
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	flush()
	if !sawUp {
		return nil, nil, fmt.Errorf("missing '%s' marker", markerUp)
	}
	return up, down, nil
}

// Render writes a migration file body with the given sections.
func Render(name string, createdAt time.Time, up, down []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- Migration: %s\n-- Created at: %s UTC\n\n", name, createdAt.UTC().Format(time.RFC3339))
	writeSection(&b, markerUp, "-- SQL in this section is executed when migrating Up.", up)
	b.WriteString("\n")
	writeSection(&b, markerDown, "-- SQL in this section is executed when migrating Down.", down)
	return b.String()
}

func writeSection(b *strings.Builder, marker, hint string, stmts []string) {
	b.WriteString(marker + "\n")
	if len(stmts) == 0 {
		b.WriteString(hint + "\n\n")
		return
	}
	for _, s := range stmts {
		b.WriteString(strings.TrimSuffix(strings.TrimSpace(s), ";") + ";\n")
	}
}

// safeName lowercases name and replaces spaces with underscores.
func safeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
