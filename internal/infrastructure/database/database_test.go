package database

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "journal", "events.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenCreatesDirectory(t *testing.T) {
	db := openTestDB(t)
	if db.Path() == "" {
		t.Error("Path() empty")
	}
	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// Table is queryable after migration if the schema is registered.
	// With no embedded migrations this is a no-op, which is also valid.
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations",
	).Scan(&count)
	if err != nil {
		t.Fatalf("schema_migrations missing: %v", err)
	}

	// Re-running must not re-apply anything.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	var again int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations",
	).Scan(&again); err != nil {
		t.Fatal(err)
	}
	if again != count {
		t.Errorf("migration count changed on re-run: %d -> %d", count, again)
	}
}
