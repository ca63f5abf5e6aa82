package process

import (
	"context"
	"testing"
	"time"
)

func TestStartStop(t *testing.T) {
	m := NewManager(Config{
		Name:            "sleeper",
		Binary:          "sleep",
		Args:            []string{"60"},
		GracefulTimeout: 2 * time.Second,
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !m.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if m.Status() != StatusStopped {
		t.Errorf("status = %s after Stop, want stopped", m.Status())
	}
}

func TestStartTwice(t *testing.T) {
	m := NewManager(Config{
		Name:   "sleeper",
		Binary: "sleep",
		Args:   []string{"60"},
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop() //nolint:errcheck

	if err := m.Start(context.Background()); err == nil {
		t.Error("second Start succeeded while running")
	}
}

func TestStartMissingBinary(t *testing.T) {
	m := NewManager(Config{
		Name:   "ghost",
		Binary: "/nonexistent/binary",
	})
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded for missing binary")
	}
	if m.Status() != StatusFailed {
		t.Errorf("status = %s, want failed", m.Status())
	}
}

func TestRestartOnFailure(t *testing.T) {
	stopped := make(chan error, 8)
	m := NewManager(Config{
		Name:               "flaky",
		Binary:             "false",
		RestartOnFailure:   true,
		RestartDelay:       50 * time.Millisecond,
		MaxRestartAttempts: 2,
		OnStop:             func(err error) { stopped <- err },
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// First exit plus two restart attempts, then the manager gives up.
	deadline := time.After(5 * time.Second)
	exits := 0
	for exits < 3 {
		select {
		case err := <-stopped:
			if err == nil {
				t.Error("failure exit reported with nil error")
			}
			exits++
		case <-deadline:
			t.Fatalf("saw %d exits before timeout, want 3", exits)
		}
	}

	if m.RestartCount() < 2 {
		t.Errorf("RestartCount() = %d, want >= 2", m.RestartCount())
	}
}

func TestStopWhenNotRunning(t *testing.T) {
	m := NewManager(Config{Name: "idle", Binary: "sleep"})
	if err := m.Stop(); err != nil {
		t.Errorf("Stop on stopped manager: %v", err)
	}
}

func TestNoRestartWhenDisabled(t *testing.T) {
	m := NewManager(Config{
		Name:             "oneshot",
		Binary:           "true",
		RestartOnFailure: false,
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if m.RestartCount() != 0 {
		t.Errorf("RestartCount() = %d, want 0", m.RestartCount())
	}
}
