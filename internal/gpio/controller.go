package gpio

import (
	"fmt"
	"sync"
	"time"
)

// Role is the current ownership mode of a controlled pin.
type Role int

const (
	// RoleReleased means the controller no longer owns the pin.
	RoleReleased Role = iota

	// RoleSense means the pin is an input delivering edge events.
	RoleSense

	// RoleDrive means the pin is an output asserting a logic level.
	RoleDrive
)

// String returns the role name for logging.
func (r Role) String() string {
	switch r {
	case RoleSense:
		return "sense"
	case RoleDrive:
		return "drive"
	case RoleReleased:
		return "released"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Controller owns a single GPIO line and switches it between the Sense and
// Drive roles. The two roles are mutually exclusive owners of the physical
// resource: the invariant is that at most one of the input and output lines
// is held at any instant.
//
// All state is guarded by a per-pin mutex. Role transitions and drive
// operations hold the lock for their full duration, so a blocking Pulse
// only ever blocks operations on its own pin, never other controllers or
// the broker dispatch loop.
type Controller struct {
	chip      Chip
	pin       int
	activeLow bool
	onEdge    EdgeHandler

	mu     sync.Mutex
	role   Role
	input  InputLine
	output OutputLine
}

// AcquireSense claims pin as an edge-reporting input and returns its
// controller. Edge events are delivered to onEdge only while the pin is in
// the Sense role; events racing a role transition are dropped.
//
// Returns ErrPinBusy (wrapped) if the pin is already owned.
func AcquireSense(chip Chip, pin int, activeLow bool, onEdge EdgeHandler) (*Controller, error) {
	c := &Controller{
		chip:      chip,
		pin:       pin,
		activeLow: activeLow,
		onEdge:    onEdge,
	}

	input, err := chip.RequestInput(pin, activeLow, c.handleEdge)
	if err != nil {
		return nil, fmt.Errorf("acquiring sense on pin %d: %w", pin, err)
	}

	c.input = input
	c.role = RoleSense
	return c, nil
}

// handleEdge filters raw chip events down to Sense-role events.
//
// TryLock rather than Lock: if the lock is held, a transition or drive
// operation is in flight on this pin and the event is stale by definition.
// Blocking here would stall the chip's event goroutine behind a pulse.
//
// The lock is held across the onEdge call so that edge publication and
// command handling on the same pin never interleave their role transitions:
// a press command arriving mid-publication is rejected busy, not raced.
func (c *Controller) handleEdge(rising bool) {
	if !c.mu.TryLock() {
		return
	}
	defer c.mu.Unlock()

	if c.role != RoleSense || c.onEdge == nil {
		return
	}
	c.onEdge(rising)
}

// Role returns the controller's current role.
func (c *Controller) Role() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// Pulse simulates a press: it atomically swaps the pin from Sense to
// Drive, asserts the active level for d, returns to the inactive level and
// restores the Sense role. The call blocks for d.
//
// A Pulse (or any other drive operation) already in progress on this pin
// causes an immediate ErrPinBusy; overlapping pulses are never queued or
// merged. A released controller returns ErrReleased.
func (c *Controller) Pulse(d time.Duration) error {
	if !c.mu.TryLock() {
		return fmt.Errorf("pulse on pin %d: %w", c.pin, ErrPinBusy)
	}
	defer c.mu.Unlock()

	switch c.role {
	case RoleReleased:
		return fmt.Errorf("pulse on pin %d: %w", c.pin, ErrReleased)
	case RoleDrive:
		return fmt.Errorf("pulse on pin %d: %w", c.pin, ErrPinBusy)
	case RoleSense:
	}

	if err := c.toDriveLocked(); err != nil {
		return err
	}

	if err := c.output.SetActive(); err != nil {
		// Best effort back to sense; the pin must not stay driven.
		_ = c.toSenseLocked()
		return fmt.Errorf("driving pin %d active: %w", c.pin, err)
	}

	time.Sleep(d)

	if err := c.output.SetInactive(); err != nil {
		_ = c.toSenseLocked()
		return fmt.Errorf("driving pin %d inactive: %w", c.pin, err)
	}

	return c.toSenseLocked()
}

// HoldDrive swaps the pin from Sense to Drive and asserts the active level
// continuously. The drive is held until ReturnToSense or Release; unlike
// Pulse there is no automatic reversion.
//
// Returns ErrPinBusy if the pin is already driving, ErrReleased if released.
func (c *Controller) HoldDrive() error {
	if !c.mu.TryLock() {
		return fmt.Errorf("hold on pin %d: %w", c.pin, ErrPinBusy)
	}
	defer c.mu.Unlock()

	switch c.role {
	case RoleReleased:
		return fmt.Errorf("hold on pin %d: %w", c.pin, ErrReleased)
	case RoleDrive:
		return fmt.Errorf("hold on pin %d: %w", c.pin, ErrPinBusy)
	case RoleSense:
	}

	if err := c.toDriveLocked(); err != nil {
		return err
	}

	if err := c.output.SetActive(); err != nil {
		_ = c.toSenseLocked()
		return fmt.Errorf("driving pin %d active: %w", c.pin, err)
	}

	return nil
}

// ReturnToSense stops a held drive and restores the Sense role, re-arming
// the edge callback. The output line is closed rather than driven inactive
// first: closing returns the pin to high impedance so it does not fight a
// parallel physical switch.
func (c *Controller) ReturnToSense() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.role {
	case RoleReleased:
		return fmt.Errorf("return to sense on pin %d: %w", c.pin, ErrReleased)
	case RoleSense:
		return fmt.Errorf("return to sense on pin %d: %w", c.pin, ErrNotDriving)
	case RoleDrive:
	}

	return c.toSenseLocked()
}

// Release tears down ownership entirely. The pin returns to an undriven
// state where the hardware supports it. Further operations fail with
// ErrReleased. Release is idempotent.
func (c *Controller) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.input != nil {
		err = c.input.Close()
		c.input = nil
	}
	if c.output != nil {
		if closeErr := c.output.Close(); err == nil {
			err = closeErr
		}
		c.output = nil
	}
	c.role = RoleReleased

	if err != nil {
		return fmt.Errorf("releasing pin %d: %w", c.pin, err)
	}
	return nil
}

// toDriveLocked swaps Sense ownership for Drive ownership. Caller holds mu.
// The input line is closed before the output is requested, so there is no
// window where both roles read the pin; an edge racing the close is simply
// never delivered.
func (c *Controller) toDriveLocked() error {
	if err := c.input.Close(); err != nil {
		return fmt.Errorf("closing sense line on pin %d: %w", c.pin, err)
	}
	c.input = nil

	output, err := c.chip.RequestOutput(c.pin, c.activeLow)
	if err != nil {
		// The sense line is already closed. Re-acquire it so a failed
		// transition degrades back to Sense instead of killing the pin.
		input, senseErr := c.chip.RequestInput(c.pin, c.activeLow, c.handleEdge)
		if senseErr != nil {
			c.role = RoleReleased
			return fmt.Errorf("acquiring drive on pin %d: %w", c.pin, err)
		}
		c.input = input
		c.role = RoleSense
		return fmt.Errorf("acquiring drive on pin %d: %w", c.pin, err)
	}

	c.output = output
	c.role = RoleDrive
	return nil
}

// toSenseLocked swaps Drive ownership for Sense ownership and re-arms the
// edge callback. Caller holds mu.
func (c *Controller) toSenseLocked() error {
	if err := c.output.Close(); err != nil {
		return fmt.Errorf("closing drive line on pin %d: %w", c.pin, err)
	}
	c.output = nil

	input, err := c.chip.RequestInput(c.pin, c.activeLow, c.handleEdge)
	if err != nil {
		c.role = RoleReleased
		return fmt.Errorf("re-acquiring sense on pin %d: %w", c.pin, err)
	}

	c.input = input
	c.role = RoleSense
	return nil
}
