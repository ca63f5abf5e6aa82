package influxdb

import "errors"

// Domain-specific errors for InfluxDB operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDisabled is returned by Connect when the mirror is disabled in
	// configuration. Callers treat it as "run without a mirror".
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed is returned when the server cannot be reached.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned when an operation requires a live
	// connection.
	ErrNotConnected = errors.New("influxdb: not connected")
)
