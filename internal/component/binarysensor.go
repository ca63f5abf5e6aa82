package component

import (
	"fmt"

	"github.com/casalprim/interfono/internal/gpio"
)

// State payloads for binary sensors and the pickup switch.
const (
	PayloadOn  = "ON"
	PayloadOff = "OFF"
)

// BinarySensor is a sense-only presence sensor (door contact, video
// presence line). Activation publishes ON, deactivation publishes OFF.
//
// The video presence sensor additionally starts and stops the external
// video stream; that side effect belongs to the device and is attached
// here as an OnChange hook, not owned by the sensor.
type BinarySensor struct {
	base
	ctrl *gpio.Controller

	// onChange, if set, fires after every published state change.
	onChange func(active bool)
}

// SensorOption customises a BinarySensor at construction.
type SensorOption func(*BinarySensor)

// WithOnChange registers a hook invoked after each state change publish.
func WithOnChange(fn func(active bool)) SensorOption {
	return func(s *BinarySensor) { s.onChange = fn }
}

// NewBinarySensor acquires pin in the Sense role and returns the sensor.
func NewBinarySensor(chip gpio.Chip, pin int, activeLow bool, name, deviceRoot string, pub Publisher, log Logger, qos byte, opts ...SensorOption) (*BinarySensor, error) {
	bs, err := newBase(name, deviceRoot, "binary_sensor", pub, log, qos)
	if err != nil {
		return nil, err
	}

	s := &BinarySensor{base: bs}
	for _, opt := range opts {
		opt(s)
	}

	ctrl, err := gpio.AcquireSense(chip, pin, activeLow, s.handleEdge)
	if err != nil {
		return nil, fmt.Errorf("sensor %q: %w", name, err)
	}
	s.ctrl = ctrl

	return s, nil
}

func (s *BinarySensor) handleEdge(rising bool) {
	payload := PayloadOff
	if rising {
		payload = PayloadOn
	}
	s.log.Info("sensor state changed", "component", s.objectID, "state", payload)
	s.publishState(payload)
	if s.onChange != nil {
		s.onChange(rising)
	}
}

// CommandTopics is empty: binary sensors have no command surface.
func (s *BinarySensor) CommandTopics() []string {
	return nil
}

// HandleCommand logs and absorbs any payload; sensors accept no commands.
func (s *BinarySensor) HandleCommand(payload []byte) error {
	s.log.Warn("command sent to sense-only component",
		"component", s.objectID,
		"payload", string(payload),
	)
	return nil
}

// Discovery returns the sensor's discovery fragment.
func (s *BinarySensor) Discovery(deviceUniqueID string) Fragment {
	return s.fragment(deviceUniqueID)
}

// Close releases the sensor's pin.
func (s *BinarySensor) Close() error {
	return s.ctrl.Release()
}
