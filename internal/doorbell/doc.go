// Package doorbell owns the device: the component registry, the MQTT
// lifecycle (discovery, availability, command routing) and the shutdown
// ordering that marks the device offline before any pin is released.
//
// The Device is also the Publisher components write through, so every
// state publish and inbound command passes one place where it can be
// journaled.
package doorbell
