// Package gpio implements the pin role controller for the Interfono bridge.
//
// A doorbell button pin is wired in parallel with the physical push button:
// most of the time it is an input that detects a real press, but to simulate
// a press the same pin must be reconfigured as an output and driven to the
// active level. The Controller makes that role switch explicit:
//
//	Sense ──▶ Drive ──▶ Sense ──▶ ... ──▶ Released
//
// At most one role owns the physical line at any instant. Edge events that
// arrive while the pin is being driven (or mid-transition) are discarded:
// the physical button cannot be meaningfully pressed while the line is held
// by an output. This loss is accepted, not worked around.
//
// Hardware access goes through the Chip interface. Cdev implements it on
// the Linux GPIO character device via go-gpiocdev; tests substitute fakes.
package gpio
