package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs a fresh root command and captures its output.
func executeCommand(args ...string) (string, string, error) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	root := newRootCmd()
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

const configTemplate = `
database:
  dialect: DIALECT
  dsn: "postgres://localhost/app"
migration:
  directory: "DIR"
resources:
  - key: posts
    name: Post
    table: posts
    titleColumn: title
    relations:
      - name: tags
        table: post_tag
        foreignKey: post_id
        relatedKey: tag_id
    fields:
      - name: Tags
        relationship: Tag
        reorderable: true
  - key: tags
    name: Tag
    table: tags
    titleColumn: name
`

func writeConfig(t *testing.T, dialect string) (string, string) {
	t.Helper()
	tempDir := t.TempDir()
	migrations := filepath.Join(tempDir, "migrations")
	content := strings.NewReplacer("DIALECT", dialect, "DIR", filepath.ToSlash(migrations)).Replace(configTemplate)
	path := filepath.Join(tempDir, "multiselect.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path, migrations
}

func TestMigrateSQLCommand(t *testing.T) {
	cfgPath, _ := writeConfig(t, "postgres")

	stdout, _, err := executeCommand("migrate", "sql", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS \"post_tag\" (\n    \"post_id\" BIGINT NOT NULL,\n    \"tag_id\" BIGINT NOT NULL,\n    \"sort_order\" INTEGER NULL,\n    PRIMARY KEY (\"post_id\", \"tag_id\")\n);\n", stdout)

	stdout, _, err = executeCommand("migrate", "sql", "--down", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "DROP TABLE IF EXISTS \"post_tag\";\n", stdout)
}

func TestMigrateSQLCommand_MySQL(t *testing.T) {
	cfgPath, _ := writeConfig(t, "mysql")

	stdout, _, err := executeCommand("migrate", "sql", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "CREATE TABLE IF NOT EXISTS `post_tag`")
	assert.Contains(t, stdout, "`sort_order` INT NULL")
}

func TestMigrateCreateCommand_Pivots(t *testing.T) {
	cfgPath, migrations := writeConfig(t, "sqlserver")

	stdout, _, err := executeCommand("migrate", "create", "AddPostTags", "--pivots", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created migration file:")

	entries, err := os.ReadDir(migrations)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_addposttags.sql"), entries[0].Name())

	content, err := os.ReadFile(filepath.Join(migrations, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(content), "-- +migrate Up\nIF OBJECT_ID(N'post_tag', N'U') IS NULL CREATE TABLE [post_tag]")
	assert.Contains(t, string(content), "-- +migrate Down\nDROP TABLE IF EXISTS [post_tag];")
}

func TestMigrateCreateCommandErrors(t *testing.T) {
	_, stderr, err := executeCommand("migrate", "create")
	assert.Error(t, err, "Expected an error for missing argument")
	assert.Contains(t, stderr, `accepts 1 arg(s), received 0`)
}

func TestMigrateCommands_UnknownDialect(t *testing.T) {
	cfgPath, _ := writeConfig(t, "oracle")

	_, _, err := executeCommand("migrate", "status", "--config", cfgPath)
	assert.ErrorContains(t, err, "unsupported or unregistered dialect: 'oracle'")

	_, _, err = executeCommand("migrate", "sql", "--config", cfgPath)
	assert.ErrorContains(t, err, "unsupported or unregistered dialect: 'oracle'")
}

func TestConfigErrors(t *testing.T) {
	_, _, err := executeCommand("migrate", "up", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "error loading configuration")
}
