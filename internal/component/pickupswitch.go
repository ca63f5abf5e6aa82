package component

import (
	"errors"
	"fmt"
	"time"

	"github.com/casalprim/interfono/internal/gpio"
)

// DrivePolicy selects how the pickup switch drives its pin on an ON
// command.
type DrivePolicy string

const (
	// DriveHold drives the pin until an OFF command arrives.
	DriveHold DrivePolicy = "hold"
	// DrivePulse drives the pin for a fixed duration, then releases.
	DrivePulse DrivePolicy = "pulse"
)

// PickupSwitch answers the intercom handset line. ON drives the pin
// according to the configured policy; OFF returns it to sensing.
//
// While the pin is driven it cannot sense, so the published state echoes
// the last successful command rather than a hardware reading.
type PickupSwitch struct {
	base
	ctrl       *gpio.Controller
	policy     DrivePolicy
	activeTime time.Duration
}

// NewPickupSwitch acquires pin in the Sense role and returns the switch.
// activeTime only applies under the pulse policy.
func NewPickupSwitch(chip gpio.Chip, pin int, activeLow bool, name, deviceRoot string, policy DrivePolicy, activeTime time.Duration, pub Publisher, log Logger, qos byte) (*PickupSwitch, error) {
	bs, err := newBase(name, deviceRoot, "switch", pub, log, qos)
	if err != nil {
		return nil, err
	}

	s := &PickupSwitch{
		base:       bs,
		policy:     policy,
		activeTime: activeTime,
	}

	ctrl, err := gpio.AcquireSense(chip, pin, activeLow, s.handleEdge)
	if err != nil {
		return nil, fmt.Errorf("switch %q: %w", name, err)
	}
	s.ctrl = ctrl

	return s, nil
}

// handleEdge covers the rare case of external hardware toggling the line
// while the switch itself is idle in the Sense role.
func (s *PickupSwitch) handleEdge(rising bool) {
	payload := PayloadOff
	if rising {
		payload = PayloadOn
	}
	s.log.Info("switch line changed externally", "component", s.objectID, "state", payload)
	s.publishState(payload)
}

// CommandTopics lists the switch's single command topic.
func (s *PickupSwitch) CommandTopics() []string {
	return []string{CommandTopic(s.root, s.objectID)}
}

// HandleCommand drives the pin on ON and restores sensing on OFF. State is
// echoed back only after the hardware operation succeeds. A command while
// the pin is busy is rejected with gpio.ErrPinBusy; unknown payloads are
// logged and absorbed.
func (s *PickupSwitch) HandleCommand(payload []byte) error {
	switch string(payload) {
	case PayloadOn:
		if err := s.driveOn(); err != nil {
			return fmt.Errorf("switch %q on: %w", s.name, err)
		}
		if s.policy == DrivePulse {
			// Pulse has already completed and the line is idle again.
			s.publishState(PayloadOff)
			return nil
		}
		s.publishState(PayloadOn)
		return nil

	case PayloadOff:
		if err := s.ctrl.ReturnToSense(); err != nil {
			// OFF while already sensing is a repeat, not a failure.
			if !errors.Is(err, gpio.ErrNotDriving) {
				return fmt.Errorf("switch %q off: %w", s.name, err)
			}
		}
		s.publishState(PayloadOff)
		return nil

	default:
		s.log.Warn("unknown command",
			"component", s.objectID,
			"payload", string(payload),
		)
		return nil
	}
}

func (s *PickupSwitch) driveOn() error {
	s.log.Info("answering line",
		"component", s.objectID,
		"policy", string(s.policy),
	)
	if s.policy == DrivePulse {
		return s.ctrl.Pulse(s.activeTime)
	}
	return s.ctrl.HoldDrive()
}

// Discovery returns the switch's discovery fragment.
func (s *PickupSwitch) Discovery(deviceUniqueID string) Fragment {
	frag := s.fragment(deviceUniqueID)
	frag.CommandTopic = CommandTopic(s.root, s.objectID)
	return frag
}

// Close releases the switch's pin.
func (s *PickupSwitch) Close() error {
	return s.ctrl.Release()
}
