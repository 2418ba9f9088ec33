// Package testing provides testing utilities and helpers for the statements project.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/aristath/statements/internal/database"
)

// NewTestDB opens a migrated database with the named schema ("statements")
// in the test's temp dir. The file goes away with the temp dir; the cleanup
// func only closes the connection and may be deferred or ignored.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	closed := false
	cleanup := func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	}
	// Close before t.TempDir removes the directory.
	t.Cleanup(cleanup)

	return db, cleanup
}
