package gpio

import "errors"

// Domain-specific errors for pin role control.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrPinBusy is returned when a line is requested while another role
	// still owns it, or when a drive operation conflicts with one already
	// holding the pin.
	ErrPinBusy = errors.New("gpio: pin busy")

	// ErrReleased is returned for operations on a released controller.
	ErrReleased = errors.New("gpio: controller released")

	// ErrNotDriving is returned by ReturnToSense when the pin is not in
	// the Drive role.
	ErrNotDriving = errors.New("gpio: pin not in drive role")
)
