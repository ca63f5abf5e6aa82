package gpio

// EdgeHandler receives edge events from a line in the Sense role.
// rising is true for a transition to the active level (a press or contact
// closure), false for a transition back to the inactive level.
type EdgeHandler func(rising bool)

// Chip grants exclusive ownership of individual GPIO lines.
//
// Implementations must return ErrPinBusy (possibly wrapped) when a line is
// requested while still owned by a previous request. Cdev is the hardware
// implementation; tests use in-memory fakes.
type Chip interface {
	// RequestInput claims pin as an edge-reporting input. activeLow
	// inverts the electrical polarity so handler always sees logical
	// levels. The handler may be invoked from a dedicated goroutine.
	RequestInput(pin int, activeLow bool, handler EdgeHandler) (InputLine, error)

	// RequestOutput claims pin as an output, initially at the inactive level.
	RequestOutput(pin int, activeLow bool) (OutputLine, error)
}

// InputLine is an owned sense line. Close releases ownership.
type InputLine interface {
	Close() error
}

// OutputLine is an owned drive line. Close releases ownership and returns
// the pin to a high-impedance state where the hardware supports it.
type OutputLine interface {
	// SetActive drives the logical active level.
	SetActive() error

	// SetInactive drives the logical inactive level.
	SetInactive() error

	Close() error
}
