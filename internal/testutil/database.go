package testutil

import (
	"testing"

	"ev-go/internal/config"
	"ev-go/internal/database"
	"ev-go/internal/ev"
)

// NewTestDatabase returns a migrated in-memory vault database, closed when
// the test ends.
func NewTestDatabase(t *testing.T) ev.Database {
	t.Helper()
	db, err := database.CreateDatabaseFromConfig(config.DatabaseConfig{Type: "memory"}, "")
	if err != nil {
		t.Fatalf("CreateDatabaseFromConfig(memory) error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
