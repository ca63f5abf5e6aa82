package stream

import (
	"context"
	"testing"
	"time"

	"github.com/casalprim/interfono/internal/infrastructure/config"
	"github.com/casalprim/interfono/internal/infrastructure/logging"
)

func testManager(enabled bool) *Manager {
	return New(config.VideoConfig{
		Enabled:         enabled,
		Binary:          "sleep",
		Args:            []string{"60"},
		GracefulTimeout: 2 * time.Second,
	}, logging.Default())
}

func TestStartStopStream(t *testing.T) {
	m := testManager(true)
	ctx := context.Background()

	if err := m.StartStream(ctx); err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if !m.Active() {
		t.Error("Active() = false after start")
	}

	// Presence edges repeat; a second start is a no-op.
	if err := m.StartStream(ctx); err != nil {
		t.Errorf("repeated StartStream: %v", err)
	}

	if err := m.StopStream(); err != nil {
		t.Fatalf("StopStream: %v", err)
	}
	if m.Active() {
		t.Error("Active() = true after stop")
	}
	if err := m.StopStream(); err != nil {
		t.Errorf("repeated StopStream: %v", err)
	}
}

func TestDisabledIsNoop(t *testing.T) {
	m := testManager(false)

	if err := m.StartStream(context.Background()); err != nil {
		t.Errorf("StartStream disabled: %v", err)
	}
	if m.Active() {
		t.Error("disabled manager reports active")
	}
	if err := m.StopStream(); err != nil {
		t.Errorf("StopStream disabled: %v", err)
	}
}

func TestCloseRefusesRestart(t *testing.T) {
	m := testManager(true)
	ctx := context.Background()

	if err := m.StartStream(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.StartStream(ctx); err == nil {
		t.Error("StartStream succeeded after Close")
	}
	// Close is idempotent.
	if err := m.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
