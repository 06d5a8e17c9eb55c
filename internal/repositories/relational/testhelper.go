package relational

import (
	"path/filepath"
	"testing"

	"github.com/nichesite/directory/internal/infrastructure/config"
	"github.com/nichesite/directory/internal/infrastructure/database"
)

// SetupTestDB creates a migrated SQLite database in a temporary directory.
// The database is closed when the test finishes.
func SetupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(&config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "nichesite_test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	if err := db.RunMigrations(); err != nil {
		db.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close database: %v", err)
		}
	})

	return db
}
