package discovery

import (
	"encoding/json"
	"fmt"

	"github.com/casalprim/interfono/internal/component"
)

// DeviceInfo describes the physical device in the discovery document,
// using the abbreviated keys Home Assistant expects.
type DeviceInfo struct {
	Identifiers  []string `json:"ids"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"mf,omitempty"`
	Model        string   `json:"mdl,omitempty"`
	SWVersion    string   `json:"sw,omitempty"`
	SerialNumber string   `json:"sn,omitempty"`
	HWVersion    string   `json:"hw,omitempty"`
}

// Origin identifies the software publishing the document.
type Origin struct {
	Name      string `json:"name"`
	SWVersion string `json:"sw,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Document is the device-level discovery document published retained at
// <prefix>/device/<unique_id>/config. Components are keyed by object id.
type Document struct {
	Device     DeviceInfo                    `json:"dev"`
	Origin     Origin                        `json:"o"`
	Components map[string]component.Fragment `json:"cmps"`
	QoS        byte                          `json:"qos"`
}

// Build assembles the discovery document for a device and its components.
// It is pure: same inputs, same document. Duplicate object ids are a
// registration bug upstream and are rejected here as a safety net.
func Build(dev DeviceInfo, origin Origin, deviceUniqueID string, qos byte, components []component.Component) (Document, error) {
	cmps := make(map[string]component.Fragment, len(components))
	for _, c := range components {
		id := c.ObjectID()
		if _, exists := cmps[id]; exists {
			return Document{}, fmt.Errorf("discovery: duplicate object id %q", id)
		}
		cmps[id] = c.Discovery(deviceUniqueID)
	}

	return Document{
		Device:     dev,
		Origin:     origin,
		Components: cmps,
		QoS:        qos,
	}, nil
}

// Marshal encodes the document as the JSON payload to publish.
func Marshal(doc Document) ([]byte, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("discovery: encode document: %w", err)
	}
	return payload, nil
}
