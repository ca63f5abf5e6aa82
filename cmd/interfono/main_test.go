package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/casalprim/interfono/internal/infrastructure/database"
	"github.com/casalprim/interfono/internal/infrastructure/logging"
	"github.com/casalprim/interfono/internal/journal"
)

func TestRunInvalidConfigPath(t *testing.T) {
	t.Setenv("INTERFONO_CONFIG", "/nonexistent/path/interfono.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with an invalid config path")
	}
}

func TestRunInvalidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "interfono.yaml")
	configContent := `
device:
  unique_id: ""

journal:
  path: ""
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	t.Setenv("INTERFONO_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail on validation errors")
	}
}

func TestLogJournalSummary(t *testing.T) {
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		WALMode:     true,
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	log := logging.Default()
	jrnl := journal.New(db, nil, log)

	// First boot: empty journal.
	logJournalSummary(ctx, jrnl, log)

	// Restart with history.
	if err := jrnl.Record("door_button", "PRESS", "command"); err != nil {
		t.Fatalf("recording event: %v", err)
	}
	logJournalSummary(ctx, jrnl, log)
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("INTERFONO_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("INTERFONO_CONFIG", "/etc/interfono/config.yaml")
	if got := getConfigPath(); got != "/etc/interfono/config.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}
