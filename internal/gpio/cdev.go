package gpio

import (
	"errors"
	"fmt"
	"syscall"

	gpiod "github.com/warthog618/go-gpiocdev"
)

// Cdev implements Chip on the Linux GPIO character device.
//
// Each RequestInput/RequestOutput maps to a kernel line request, so the
// kernel itself enforces exclusive ownership: a second request for a held
// line fails with EBUSY, which is surfaced as ErrPinBusy.
type Cdev struct {
	chip *gpiod.Chip
}

// OpenCdev opens the named GPIO character device (e.g. "gpiochip0").
func OpenCdev(name string) (*Cdev, error) {
	chip, err := gpiod.NewChip(name, gpiod.WithConsumer("interfono"))
	if err != nil {
		return nil, fmt.Errorf("opening gpio chip %s: %w", name, err)
	}
	return &Cdev{chip: chip}, nil
}

// RequestInput claims pin as an edge-reporting input.
func (c *Cdev) RequestInput(pin int, activeLow bool, handler EdgeHandler) (InputLine, error) {
	opts := []gpiod.LineReqOption{
		gpiod.AsInput,
		gpiod.WithBothEdges,
		gpiod.WithEventHandler(func(evt gpiod.LineEvent) {
			// With AsActiveLow the kernel reports logical edges, so a
			// rising edge is always "became active".
			handler(evt.Type == gpiod.LineEventRisingEdge)
		}),
	}
	if activeLow {
		opts = append(opts, gpiod.AsActiveLow)
	}

	line, err := c.chip.RequestLine(pin, opts...)
	if err != nil {
		return nil, wrapRequestErr(pin, err)
	}
	return &cdevInput{line: line}, nil
}

// RequestOutput claims pin as an output at the logical inactive level.
func (c *Cdev) RequestOutput(pin int, activeLow bool) (OutputLine, error) {
	opts := []gpiod.LineReqOption{
		gpiod.AsOutput(0),
	}
	if activeLow {
		opts = append(opts, gpiod.AsActiveLow)
	}

	line, err := c.chip.RequestLine(pin, opts...)
	if err != nil {
		return nil, wrapRequestErr(pin, err)
	}
	return &cdevOutput{line: line}, nil
}

// Close releases the chip handle. Individual line requests stay valid
// until their own Close, per the character device semantics.
func (c *Cdev) Close() error {
	return c.chip.Close()
}

// wrapRequestErr converts a kernel EBUSY into ErrPinBusy.
func wrapRequestErr(pin int, err error) error {
	if errors.Is(err, syscall.EBUSY) {
		return fmt.Errorf("requesting pin %d: %w", pin, ErrPinBusy)
	}
	return fmt.Errorf("requesting pin %d: %w", pin, err)
}

type cdevInput struct {
	line *gpiod.Line
}

func (l *cdevInput) Close() error {
	return l.line.Close()
}

type cdevOutput struct {
	line *gpiod.Line
}

func (l *cdevOutput) SetActive() error {
	return l.line.SetValue(1)
}

func (l *cdevOutput) SetInactive() error {
	return l.line.SetValue(0)
}

// Close releases the line. The kernel returns a released output to its
// default (high impedance on chips that support it), which is what the
// pickup switch relies on to avoid fighting the parallel physical switch.
func (l *cdevOutput) Close() error {
	return l.line.Close()
}
