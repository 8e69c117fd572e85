package sqlstore

import (
	"testing"

	"github.com/asakaida/relata/internal/infrastructure/config"
	"github.com/asakaida/relata/internal/infrastructure/database"
)

// SetupTestDB opens a migrated in-memory SQLite database and returns a store on it.
// The database is closed when the test ends.
func SetupTestDB(t *testing.T) *Store {
	t.Helper()

	db, err := database.Open(&config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close database: %v", err)
		}
	})

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	store, err := New(db.DB, db.Driver)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

// MustExec runs a setup statement written with ? placeholders
func MustExec(t *testing.T, store *Store, query string, args ...interface{}) {
	t.Helper()
	if _, err := store.db.Exec(store.dialect.Rebind(query), args...); err != nil {
		t.Fatalf("Failed to exec %q: %v", query, err)
	}
}
