// Package testutil provides shared test helpers for setting up workspaces and
// index databases.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/gtdspace/internal/index"
	"github.com/starford/gtdspace/internal/storage"
)

// TestDB opens an index database in a temporary directory that is removed
// when the test ends.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "gtdspace-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestWorkspace creates a temporary workspace directory with a storage.Provider.
func TestWorkspace(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Seed writes files into store, failing the test on the first error.
func Seed(t *testing.T, store storage.Provider, files map[string]string) {
	t.Helper()
	for path, content := range files {
		if err := store.Write(path, []byte(content)); err != nil {
			t.Fatalf("seed %s: %v", path, err)
		}
	}
}
