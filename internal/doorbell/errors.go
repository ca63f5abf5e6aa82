package doorbell

import "errors"

// Domain-specific errors for the device lifecycle.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDuplicateComponent is returned when a registered component's
	// object id collides with an existing one.
	ErrDuplicateComponent = errors.New("doorbell: duplicate component")

	// ErrAlreadyStarted is returned when registration is attempted after
	// the device has connected. The component set is fixed at startup.
	ErrAlreadyStarted = errors.New("doorbell: device already started")

	// ErrShuttingDown is returned when a lifecycle transition is requested
	// after shutdown has begun.
	ErrShuttingDown = errors.New("doorbell: device shutting down")
)
