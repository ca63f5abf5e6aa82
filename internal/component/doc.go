// Package component models the doorbell's MQTT components: buttons,
// binary presence sensors, the pickup switch and the camera.
//
// Each component derives its object id deterministically from its name,
// owns a fixed topic set under the device root topic, publishes state on
// hardware edges, handles inbound commands, and contributes a fragment to
// the retained Home Assistant discovery document.
//
// Components do not talk to the broker directly: they publish through the
// Publisher interface, which the doorbell Device implements so it can
// journal events and gate publishes on lifecycle state.
package component
