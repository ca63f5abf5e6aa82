package component

import (
	"fmt"
	"regexp"
	"strings"
)

// objectIDPattern is the shape every derived object id must match.
// Lower-case words joined by underscores keeps topic segments unambiguous.
const objectIDPattern = `^[a-z0-9]+(?:_[a-z0-9]+)*$`

var objectIDRegex = regexp.MustCompile(objectIDPattern)

// Publisher is the broker-facing surface components need. It is satisfied
// by the MQTT client and, in the running bridge, by the doorbell Device,
// which forwards to the transport and journals state publishes.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger is the logging interface used by components.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Component is one entity of the doorbell device: a button, a binary
// sensor, the pickup switch or the camera. A component owns its topic set,
// reacts to inbound commands and contributes a fragment to the discovery
// document. Topic sets are fixed at construction and never mutated.
type Component interface {
	// ObjectID is the stable slug identifying the component within the
	// device topic namespace. Unique per device, enforced at registration.
	ObjectID() string

	// Name is the human-readable component name.
	Name() string

	// Platform is the Home Assistant platform tag (button, binary_sensor,
	// switch, camera).
	Platform() string

	// CommandTopics lists the topics the device must subscribe to on the
	// component's behalf. Empty for sense-only components.
	CommandTopics() []string

	// AvailabilityTopic is where the device publishes this component's
	// online/offline state.
	AvailabilityTopic() string

	// Discovery returns the component's fragment of the device discovery
	// document. deviceUniqueID prefixes the fragment's unique_id.
	Discovery(deviceUniqueID string) Fragment

	// HandleCommand processes an inbound command payload. Unknown
	// payloads are logged and absorbed; hardware conflicts (a pulse
	// already in progress) surface as errors.
	HandleCommand(payload []byte) error

	// Close releases the component's hardware resources. Idempotent.
	Close() error
}

// Fragment is one component's entry in the discovery document, using the
// abbreviated keys Home Assistant expects.
type Fragment struct {
	Platform          string `json:"p"`
	Name              string `json:"name"`
	StateTopic        string `json:"state_topic,omitempty"`
	CommandTopic      string `json:"command_topic,omitempty"`
	AvailabilityTopic string `json:"availability_topic"`
	DataTopic         string `json:"data_topic,omitempty"`
	AttributesTopic   string `json:"json_attributes_topic,omitempty"`
	ObjectID          string `json:"object_id"`
	UniqueID          string `json:"unique_id"`
}

// ObjectID derives the stable object id from a human name: lower-cased,
// spaces replaced by underscores. "Door Button" becomes "door_button".
// The derivation is deterministic; collision between distinct names is
// possible ("Door  Button") and must be rejected by the registering device.
func ObjectID(name string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(name))
	id = strings.ReplaceAll(id, " ", "_")

	if !objectIDRegex.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return id, nil
}

// base carries the identity and topic set shared by all components.
type base struct {
	name     string
	objectID string
	root     string // device root topic
	platform string

	pub Publisher
	log Logger
	qos byte
}

func newBase(name, deviceRoot, platform string, pub Publisher, log Logger, qos byte) (base, error) {
	id, err := ObjectID(name)
	if err != nil {
		return base{}, err
	}
	return base{
		name:     name,
		objectID: id,
		root:     deviceRoot,
		platform: platform,
		pub:      pub,
		log:      log,
		qos:      qos,
	}, nil
}

func (b *base) ObjectID() string { return b.objectID }
func (b *base) Name() string     { return b.name }
func (b *base) Platform() string { return b.platform }

func (b *base) AvailabilityTopic() string {
	return AvailabilityTopic(b.root, b.objectID)
}

// publishState publishes to the component state topic, logging failures.
// State publication is fire-and-forget: a failed publish never blocks or
// aborts the hardware path that produced the event.
func (b *base) publishState(payload string) {
	topic := StateTopic(b.root, b.objectID)
	if err := b.pub.Publish(topic, []byte(payload), b.qos, false); err != nil {
		b.log.Warn("state publish failed",
			"component", b.objectID,
			"payload", payload,
			"error", err,
		)
	}
}

// fragment fills the common discovery fields.
func (b *base) fragment(deviceUniqueID string) Fragment {
	return Fragment{
		Platform:          b.platform,
		Name:              b.name,
		StateTopic:        StateTopic(b.root, b.objectID),
		AvailabilityTopic: b.AvailabilityTopic(),
		ObjectID:          b.objectID,
		UniqueID:          fmt.Sprintf("%s_%s", deviceUniqueID, b.objectID),
	}
}
