package component

import (
	"fmt"
	"time"

	"github.com/casalprim/interfono/internal/gpio"
)

// Command and state payloads for the button platform.
const (
	// PayloadPress is both the state published on a physical press and
	// the only command a button accepts.
	PayloadPress = "PRESS"
)

// Button is a momentary doorbell button. Its pin normally senses physical
// presses; on a PRESS command the pin is temporarily driven to simulate
// one, then returned to sensing.
type Button struct {
	base
	ctrl       *gpio.Controller
	activeTime time.Duration

	// onPress, if set, fires after a physical press is published.
	// The device uses it to trigger a camera snapshot.
	onPress func()
}

// ButtonOption customises a Button at construction.
type ButtonOption func(*Button)

// WithOnPress registers a hook invoked on every physical press.
func WithOnPress(fn func()) ButtonOption {
	return func(b *Button) { b.onPress = fn }
}

// NewButton acquires pin in the Sense role and returns the button.
// activeTime is the drive pulse duration for a simulated press.
func NewButton(chip gpio.Chip, pin int, activeLow bool, name, deviceRoot string, activeTime time.Duration, pub Publisher, log Logger, qos byte, opts ...ButtonOption) (*Button, error) {
	bs, err := newBase(name, deviceRoot, "button", pub, log, qos)
	if err != nil {
		return nil, err
	}

	b := &Button{
		base:       bs,
		activeTime: activeTime,
	}
	for _, opt := range opts {
		opt(b)
	}

	ctrl, err := gpio.AcquireSense(chip, pin, activeLow, b.handleEdge)
	if err != nil {
		return nil, fmt.Errorf("button %q: %w", name, err)
	}
	b.ctrl = ctrl

	return b, nil
}

// handleEdge publishes PRESS on the activation edge. The deactivation edge
// (button released) carries no information for a momentary button.
func (b *Button) handleEdge(rising bool) {
	if !rising {
		return
	}
	b.log.Info("button pressed", "component", b.objectID)
	b.publishState(PayloadPress)
	if b.onPress != nil {
		b.onPress()
	}
}

// CommandTopics lists the button's single command topic.
func (b *Button) CommandTopics() []string {
	return []string{CommandTopic(b.root, b.objectID)}
}

// HandleCommand simulates a press on PRESS. A command arriving while a
// pulse is already in progress is rejected with gpio.ErrPinBusy and never
// queued; unknown payloads are logged and absorbed.
func (b *Button) HandleCommand(payload []byte) error {
	if string(payload) != PayloadPress {
		b.log.Warn("unknown command",
			"component", b.objectID,
			"payload", string(payload),
		)
		return nil
	}

	b.log.Info("simulating press",
		"component", b.objectID,
		"active_time", b.activeTime,
	)
	if err := b.ctrl.Pulse(b.activeTime); err != nil {
		return fmt.Errorf("button %q press: %w", b.name, err)
	}
	return nil
}

// Discovery returns the button's discovery fragment.
func (b *Button) Discovery(deviceUniqueID string) Fragment {
	frag := b.fragment(deviceUniqueID)
	frag.CommandTopic = CommandTopic(b.root, b.objectID)
	return frag
}

// Close releases the button's pin.
func (b *Button) Close() error {
	return b.ctrl.Release()
}
