// Package config loads and validates the Interfono bridge configuration.
//
// Configuration is read from a YAML file, merged over hardcoded defaults,
// and finally overridden by INTERFONO_* environment variables. Credentials
// (broker password, InfluxDB token) should come from the environment rather
// than the file.
//
// The defaults describe the reference installation: two doorbell buttons,
// a door presence sensor and a video presence sensor wired to a Raspberry
// Pi GPIO header, publishing to a local Mosquitto broker.
package config
