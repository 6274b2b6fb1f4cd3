package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"002_add_index.up.sql",
		"001_create_schema.up.sql",
		"001_create_schema.down.sql",
		"002_add_index.down.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
	}

	up, err := migrationFiles(dir, "up")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "001_create_schema.up.sql"),
		filepath.Join(dir, "002_add_index.up.sql"),
	}, up)

	down, err := migrationFiles(dir, "down")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "002_add_index.down.sql"),
		filepath.Join(dir, "001_create_schema.down.sql"),
	}, down)
}
