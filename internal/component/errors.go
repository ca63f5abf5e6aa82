package component

import "errors"

// Domain-specific errors for the component model.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidName is returned when a component name cannot be reduced
	// to a valid object id.
	ErrInvalidName = errors.New("component: invalid name")
)
