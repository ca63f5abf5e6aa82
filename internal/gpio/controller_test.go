package gpio

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeChip is an in-memory Chip that enforces exclusive line ownership and
// records every role the pin passes through.
type fakeChip struct {
	mu        sync.Mutex
	owner     string // "", "input", "output"
	handler   EdgeHandler
	active    bool
	history   []string
	outputErr error // next RequestOutput fails with this, once
}

func (f *fakeChip) RequestInput(pin int, activeLow bool, handler EdgeHandler) (InputLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.owner != "" {
		return nil, ErrPinBusy
	}
	f.owner = "input"
	f.handler = handler
	f.history = append(f.history, "input")
	return &fakeInput{chip: f}, nil
}

func (f *fakeChip) RequestOutput(pin int, activeLow bool) (OutputLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outputErr != nil {
		err := f.outputErr
		f.outputErr = nil
		return nil, err
	}
	if f.owner != "" {
		return nil, ErrPinBusy
	}
	f.owner = "output"
	f.handler = nil
	f.history = append(f.history, "output")
	return &fakeOutput{chip: f}, nil
}

// fireEdge delivers an edge event as the chip's event goroutine would.
func (f *fakeChip) fireEdge(rising bool) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(rising)
	}
}

func (f *fakeChip) currentOwner() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owner
}

func (f *fakeChip) isActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

type fakeInput struct {
	chip *fakeChip
}

func (l *fakeInput) Close() error {
	l.chip.mu.Lock()
	defer l.chip.mu.Unlock()
	l.chip.owner = ""
	l.chip.handler = nil
	return nil
}

type fakeOutput struct {
	chip *fakeChip
}

func (l *fakeOutput) SetActive() error {
	l.chip.mu.Lock()
	defer l.chip.mu.Unlock()
	l.chip.active = true
	return nil
}

func (l *fakeOutput) SetInactive() error {
	l.chip.mu.Lock()
	defer l.chip.mu.Unlock()
	l.chip.active = false
	return nil
}

func (l *fakeOutput) Close() error {
	l.chip.mu.Lock()
	defer l.chip.mu.Unlock()
	l.chip.owner = ""
	l.chip.active = false
	return nil
}

func TestAcquireSense(t *testing.T) {
	chip := &fakeChip{}

	ctrl, err := AcquireSense(chip, 14, false, nil)
	if err != nil {
		t.Fatalf("AcquireSense() error = %v", err)
	}

	if got := ctrl.Role(); got != RoleSense {
		t.Errorf("Role() = %v, want sense", got)
	}
	if owner := chip.currentOwner(); owner != "input" {
		t.Errorf("chip owner = %q, want input", owner)
	}
}

func TestAcquireSenseBusyPin(t *testing.T) {
	chip := &fakeChip{}

	if _, err := AcquireSense(chip, 14, false, nil); err != nil {
		t.Fatalf("AcquireSense() error = %v", err)
	}

	_, err := AcquireSense(chip, 14, false, nil)
	if !errors.Is(err, ErrPinBusy) {
		t.Errorf("second AcquireSense() error = %v, want ErrPinBusy", err)
	}
}

func TestEdgeDelivery(t *testing.T) {
	chip := &fakeChip{}
	var edges []bool

	_, err := AcquireSense(chip, 14, false, func(rising bool) {
		edges = append(edges, rising)
	})
	if err != nil {
		t.Fatalf("AcquireSense() error = %v", err)
	}

	chip.fireEdge(true)
	chip.fireEdge(false)

	if len(edges) != 2 || !edges[0] || edges[1] {
		t.Errorf("edges = %v, want [true false]", edges)
	}
}

func TestPulseRestoresSense(t *testing.T) {
	chip := &fakeChip{}
	ctrl, err := AcquireSense(chip, 14, false, nil)
	if err != nil {
		t.Fatalf("AcquireSense() error = %v", err)
	}

	start := time.Now()
	if err := ctrl.Pulse(30 * time.Millisecond); err != nil {
		t.Fatalf("Pulse() error = %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 30*time.Millisecond {
		t.Errorf("Pulse() returned after %v, want >= 30ms", elapsed)
	}
	if got := ctrl.Role(); got != RoleSense {
		t.Errorf("Role() after pulse = %v, want sense", got)
	}
	if chip.isActive() {
		t.Error("pin still driven active after pulse")
	}
	if owner := chip.currentOwner(); owner != "input" {
		t.Errorf("chip owner after pulse = %q, want input", owner)
	}

	// The pin went input -> output -> input, never both at once.
	want := []string{"input", "output", "input"}
	if len(chip.history) != len(want) {
		t.Fatalf("ownership history = %v, want %v", chip.history, want)
	}
	for i := range want {
		if chip.history[i] != want[i] {
			t.Fatalf("ownership history = %v, want %v", chip.history, want)
		}
	}
}

func TestPulseWhilePulsing(t *testing.T) {
	chip := &fakeChip{}
	ctrl, err := AcquireSense(chip, 14, false, nil)
	if err != nil {
		t.Fatalf("AcquireSense() error = %v", err)
	}

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		done <- ctrl.Pulse(80 * time.Millisecond)
	}()

	<-started
	time.Sleep(20 * time.Millisecond) // let the first pulse take the lock

	if err := ctrl.Pulse(10 * time.Millisecond); !errors.Is(err, ErrPinBusy) {
		t.Errorf("overlapping Pulse() error = %v, want ErrPinBusy", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("first Pulse() error = %v", err)
	}
	if got := ctrl.Role(); got != RoleSense {
		t.Errorf("Role() = %v, want sense", got)
	}
}

func TestEdgeDiscardedDuringPulse(t *testing.T) {
	chip := &fakeChip{}
	var edges int

	ctrl, err := AcquireSense(chip, 14, false, func(bool) { edges++ })
	if err != nil {
		t.Fatalf("AcquireSense() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- ctrl.Pulse(80 * time.Millisecond)
	}()

	time.Sleep(20 * time.Millisecond)
	chip.fireEdge(true) // arrives while the pin is being driven

	if err := <-done; err != nil {
		t.Fatalf("Pulse() error = %v", err)
	}
	if edges != 0 {
		t.Errorf("edges delivered during pulse = %d, want 0", edges)
	}

	// After the pulse the sense role is re-armed.
	chip.fireEdge(true)
	if edges != 1 {
		t.Errorf("edges delivered after pulse = %d, want 1", edges)
	}
}

func TestDriveFailureRestoresSense(t *testing.T) {
	chip := &fakeChip{}
	var edges int

	ctrl, err := AcquireSense(chip, 14, false, func(bool) { edges++ })
	if err != nil {
		t.Fatalf("AcquireSense() error = %v", err)
	}

	// An outside owner grabs the line between our close and request.
	chip.mu.Lock()
	chip.outputErr = errors.New("device or resource busy")
	chip.mu.Unlock()

	if err := ctrl.Pulse(time.Millisecond); err == nil {
		t.Fatal("Pulse() succeeded despite failing output request")
	}
	if got := ctrl.Role(); got != RoleSense {
		t.Errorf("Role() after drive failure = %v, want sense", got)
	}
	if owner := chip.currentOwner(); owner != "input" {
		t.Errorf("chip owner after drive failure = %q, want input", owner)
	}

	// The re-armed sense line still delivers edges.
	chip.fireEdge(true)
	if edges != 1 {
		t.Errorf("edges after recovery = %d, want 1", edges)
	}

	chip.mu.Lock()
	chip.outputErr = errors.New("device or resource busy")
	chip.mu.Unlock()

	if err := ctrl.HoldDrive(); err == nil {
		t.Fatal("HoldDrive() succeeded despite failing output request")
	}
	if got := ctrl.Role(); got != RoleSense {
		t.Errorf("Role() after hold failure = %v, want sense", got)
	}
}

func TestHoldDrive(t *testing.T) {
	chip := &fakeChip{}
	ctrl, err := AcquireSense(chip, 24, false, nil)
	if err != nil {
		t.Fatalf("AcquireSense() error = %v", err)
	}

	if err := ctrl.HoldDrive(); err != nil {
		t.Fatalf("HoldDrive() error = %v", err)
	}
	if got := ctrl.Role(); got != RoleDrive {
		t.Errorf("Role() = %v, want drive", got)
	}
	if !chip.isActive() {
		t.Error("pin not driven active during hold")
	}

	// A second hold or a pulse must not stack on the held drive.
	if err := ctrl.HoldDrive(); !errors.Is(err, ErrPinBusy) {
		t.Errorf("second HoldDrive() error = %v, want ErrPinBusy", err)
	}
	if err := ctrl.Pulse(time.Millisecond); !errors.Is(err, ErrPinBusy) {
		t.Errorf("Pulse() during hold error = %v, want ErrPinBusy", err)
	}

	if err := ctrl.ReturnToSense(); err != nil {
		t.Fatalf("ReturnToSense() error = %v", err)
	}
	if got := ctrl.Role(); got != RoleSense {
		t.Errorf("Role() = %v, want sense", got)
	}
	if chip.isActive() {
		t.Error("pin still active after ReturnToSense")
	}
}

func TestReturnToSenseNotDriving(t *testing.T) {
	chip := &fakeChip{}
	ctrl, err := AcquireSense(chip, 24, false, nil)
	if err != nil {
		t.Fatalf("AcquireSense() error = %v", err)
	}

	if err := ctrl.ReturnToSense(); !errors.Is(err, ErrNotDriving) {
		t.Errorf("ReturnToSense() error = %v, want ErrNotDriving", err)
	}
}

func TestRelease(t *testing.T) {
	chip := &fakeChip{}
	ctrl, err := AcquireSense(chip, 14, false, nil)
	if err != nil {
		t.Fatalf("AcquireSense() error = %v", err)
	}

	if err := ctrl.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if got := ctrl.Role(); got != RoleReleased {
		t.Errorf("Role() = %v, want released", got)
	}
	if owner := chip.currentOwner(); owner != "" {
		t.Errorf("chip owner after release = %q, want none", owner)
	}

	// Released controllers reject further operations.
	if err := ctrl.Pulse(time.Millisecond); !errors.Is(err, ErrReleased) {
		t.Errorf("Pulse() after release error = %v, want ErrReleased", err)
	}
	if err := ctrl.HoldDrive(); !errors.Is(err, ErrReleased) {
		t.Errorf("HoldDrive() after release error = %v, want ErrReleased", err)
	}

	// Release is idempotent.
	if err := ctrl.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}

func TestReleaseDuringHold(t *testing.T) {
	chip := &fakeChip{}
	ctrl, err := AcquireSense(chip, 24, false, nil)
	if err != nil {
		t.Fatalf("AcquireSense() error = %v", err)
	}

	if err := ctrl.HoldDrive(); err != nil {
		t.Fatalf("HoldDrive() error = %v", err)
	}
	if err := ctrl.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if owner := chip.currentOwner(); owner != "" {
		t.Errorf("chip owner after release = %q, want none", owner)
	}
}

// The invariant from the role model: after every operation, sense and
// drive are never simultaneously active.
func TestNeverBothRoles(t *testing.T) {
	chip := &fakeChip{}
	ctrl, err := AcquireSense(chip, 14, false, nil)
	if err != nil {
		t.Fatalf("AcquireSense() error = %v", err)
	}

	ops := []func() error{
		func() error { return ctrl.Pulse(5 * time.Millisecond) },
		ctrl.HoldDrive,
		ctrl.ReturnToSense,
		func() error { return ctrl.Pulse(5 * time.Millisecond) },
		ctrl.Release,
	}

	for i, op := range ops {
		_ = op()
		ctrl.mu.Lock()
		both := ctrl.input != nil && ctrl.output != nil
		ctrl.mu.Unlock()
		if both {
			t.Fatalf("after op %d: both sense and drive lines held", i)
		}
	}
}
