package doorbell

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/casalprim/interfono/internal/component"
	"github.com/casalprim/interfono/internal/discovery"
	"github.com/casalprim/interfono/internal/gpio"
	"github.com/casalprim/interfono/internal/infrastructure/mqtt"
)

// State is the device lifecycle phase.
type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateConnected
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateConnected:
		return "connected"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Journal event sources.
const (
	SourceState   = "state"
	SourceCommand = "command"
)

// Transport is the broker surface the device needs. Satisfied by the
// MQTT client wrapper.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Recorder persists component events. Satisfied by the journal; nil
// disables journaling.
type Recorder interface {
	Record(objectID, payload, source string) error
}

// Identity carries the device's MQTT-facing identity.
type Identity struct {
	UniqueID        string
	RootTopic       string
	DiscoveryPrefix string
	Info            discovery.DeviceInfo
	Origin          discovery.Origin
	QoS             byte
}

// Device is the doorbell: a fixed set of components sharing one identity,
// one availability contract and one retained discovery document.
type Device struct {
	id        Identity
	transport Transport
	rec       Recorder
	log       component.Logger

	mu         sync.Mutex
	state      State
	components map[string]component.Component
	order      []string // registration order, kept for stable iteration
}

// NewDevice returns a configured device with an empty component set.
func NewDevice(id Identity, transport Transport, rec Recorder, log component.Logger) *Device {
	return &Device{
		id:         id,
		transport:  transport,
		rec:        rec,
		log:        log,
		state:      StateConfigured,
		components: make(map[string]component.Component),
	}
}

// State returns the current lifecycle phase.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Register adds a component to the device. Object ids must be unique per
// device and the set is fixed once the device connects.
func (d *Device) Register(c component.Component) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateConfigured {
		return fmt.Errorf("%w: cannot register %q in state %s", ErrAlreadyStarted, c.ObjectID(), d.state)
	}
	id := c.ObjectID()
	if _, exists := d.components[id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateComponent, id)
	}

	d.components[id] = c
	d.order = append(d.order, id)
	d.log.Info("component registered",
		"component", id,
		"platform", c.Platform(),
	)
	return nil
}

// Publish implements component.Publisher. Component state publishes are
// journaled on their way to the broker.
func (d *Device) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if id, ok := d.stateObjectID(topic); ok {
		d.record(id, string(payload), SourceState)
	}
	return d.transport.Publish(topic, payload, qos, retained)
}

// HandleConnect performs the connected transition: subscribe to every
// command topic, publish the retained discovery document and mark the
// device and its components online. Safe to run again on reconnect; each
// step is a replacement, not an accumulation.
func (d *Device) HandleConnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateShuttingDown || d.state == StateStopped {
		return ErrShuttingDown
	}

	for _, id := range d.order {
		for _, topic := range d.components[id].CommandTopics() {
			if err := d.transport.Subscribe(topic, d.id.QoS, d.HandleMessage); err != nil {
				return fmt.Errorf("subscribe %s: %w", topic, err)
			}
		}
	}

	if err := d.publishDiscoveryLocked(); err != nil {
		return err
	}

	online := []byte(component.PayloadOnline)
	if err := d.transport.Publish(component.DeviceAvailabilityTopic(d.id.RootTopic), online, d.id.QoS, true); err != nil {
		return fmt.Errorf("publish device availability: %w", err)
	}
	for _, id := range d.order {
		c := d.components[id]
		if err := d.transport.Publish(c.AvailabilityTopic(), online, d.id.QoS, true); err != nil {
			return fmt.Errorf("publish %s availability: %w", id, err)
		}
	}

	d.state = StateConnected
	d.log.Info("device online",
		"device", d.id.UniqueID,
		"components", len(d.order),
	)
	return nil
}

func (d *Device) publishDiscoveryLocked() error {
	comps := make([]component.Component, 0, len(d.order))
	for _, id := range d.order {
		comps = append(comps, d.components[id])
	}

	doc, err := discovery.Build(d.id.Info, d.id.Origin, d.id.UniqueID, d.id.QoS, comps)
	if err != nil {
		return err
	}
	payload, err := discovery.Marshal(doc)
	if err != nil {
		return err
	}

	topic := component.DiscoveryTopic(d.id.DiscoveryPrefix, d.id.UniqueID)
	if err := d.transport.Publish(topic, payload, d.id.QoS, true); err != nil {
		return fmt.Errorf("publish discovery: %w", err)
	}
	return nil
}

// HandleMessage routes an inbound message to its component. It matches
// the transport's handler signature so it can be subscribed directly.
//
// Command errors never propagate: a busy pin or a malformed payload is a
// per-command event, logged and dropped, not a transport failure.
func (d *Device) HandleMessage(topic string, payload []byte) error {
	objectID, subtopic, ok := d.splitTopic(topic)
	if !ok {
		d.log.Debug("message outside device namespace ignored", "topic", topic)
		return nil
	}

	if subtopic != component.SubtopicCommand {
		// Our own retained states echo back on reconnect. Not commands.
		d.log.Debug("non-command message ignored", "topic", topic)
		return nil
	}

	d.mu.Lock()
	c, exists := d.components[objectID]
	state := d.state
	d.mu.Unlock()

	if !exists {
		d.log.Warn("command for unknown component ignored",
			"component", objectID,
		)
		return nil
	}
	if state != StateConnected {
		d.log.Warn("command ignored outside connected state",
			"component", objectID,
			"state", state.String(),
		)
		return nil
	}

	d.record(objectID, string(payload), SourceCommand)

	if err := c.HandleCommand(payload); err != nil {
		if errors.Is(err, gpio.ErrPinBusy) {
			d.log.Warn("command rejected, pin busy",
				"component", objectID,
			)
			return nil
		}
		d.log.Error("command failed",
			"component", objectID,
			"error", err,
		)
	}
	return nil
}

// Shutdown marks the device offline, then releases component hardware.
// The offline publishes come first so the broker never advertises an
// online device whose pins are already gone. Offline publishes are best
// effort; pin release proceeds regardless. Idempotent.
func (d *Device) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateStopped {
		return nil
	}
	d.state = StateShuttingDown
	d.log.Info("shutting down", "device", d.id.UniqueID)

	// Stop inbound commands first so nothing dispatches into components
	// that are about to release their pins. Best effort, like the
	// offline publishes below.
	for _, id := range d.order {
		for _, topic := range d.components[id].CommandTopics() {
			if err := d.transport.Unsubscribe(topic); err != nil {
				d.log.Warn("unsubscribe failed", "topic", topic, "error", err)
			}
		}
	}

	offline := []byte(component.PayloadOffline)
	for _, id := range d.order {
		c := d.components[id]
		if err := d.transport.Publish(c.AvailabilityTopic(), offline, d.id.QoS, true); err != nil {
			d.log.Warn("offline publish failed", "component", id, "error", err)
		}
	}
	if err := d.transport.Publish(component.DeviceAvailabilityTopic(d.id.RootTopic), offline, d.id.QoS, true); err != nil {
		d.log.Warn("device offline publish failed", "error", err)
	}

	var errs []error
	for _, id := range d.order {
		if err := d.components[id].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}

	d.state = StateStopped
	d.log.Info("stopped", "device", d.id.UniqueID)
	return errors.Join(errs...)
}

// RemoveDiscovery clears the retained discovery document so the device
// disappears from Home Assistant. Intended for decommissioning, not for
// ordinary restarts.
func (d *Device) RemoveDiscovery() error {
	topic := component.DiscoveryTopic(d.id.DiscoveryPrefix, d.id.UniqueID)
	if err := d.transport.Publish(topic, nil, d.id.QoS, true); err != nil {
		return fmt.Errorf("remove discovery: %w", err)
	}
	return nil
}

func (d *Device) record(objectID, payload, source string) {
	if d.rec == nil {
		return
	}
	if err := d.rec.Record(objectID, payload, source); err != nil {
		d.log.Warn("journal write failed",
			"component", objectID,
			"source", source,
			"error", err,
		)
	}
}

// stateObjectID reports whether topic is a component state topic under the
// device root, and if so which component it belongs to.
func (d *Device) stateObjectID(topic string) (string, bool) {
	objectID, subtopic, ok := d.splitTopic(topic)
	if !ok || subtopic != component.SubtopicState {
		return "", false
	}
	return objectID, true
}

// splitTopic decomposes root/<object_id>/<subtopic>. Topics outside the
// device root, or with a different shape, report ok=false.
func (d *Device) splitTopic(topic string) (objectID, subtopic string, ok bool) {
	prefix := d.id.RootTopic + "/"
	if !strings.HasPrefix(topic, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(topic, prefix)
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
