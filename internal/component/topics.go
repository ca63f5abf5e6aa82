package component

import "fmt"

// Subtopic suffixes of the component topic namespace. Every component
// exposes state, command and availability under its root topic; the camera
// additionally publishes to data and json_attributes.
const (
	SubtopicState        = "state"
	SubtopicCommand      = "command"
	SubtopicAvailability = "availability"
	SubtopicData         = "data"
	SubtopicAttributes   = "json_attributes"
)

// Availability payloads, shared by the device and every component.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// RootTopic returns the base topic of a component:
// {deviceRoot}/{objectID}.
func RootTopic(deviceRoot, objectID string) string {
	return fmt.Sprintf("%s/%s", deviceRoot, objectID)
}

// StateTopic returns the component's state topic.
func StateTopic(deviceRoot, objectID string) string {
	return fmt.Sprintf("%s/%s/%s", deviceRoot, objectID, SubtopicState)
}

// CommandTopic returns the component's command topic.
func CommandTopic(deviceRoot, objectID string) string {
	return fmt.Sprintf("%s/%s/%s", deviceRoot, objectID, SubtopicCommand)
}

// AvailabilityTopic returns the component's availability topic.
func AvailabilityTopic(deviceRoot, objectID string) string {
	return fmt.Sprintf("%s/%s/%s", deviceRoot, objectID, SubtopicAvailability)
}

// DataTopic returns the camera's binary frame topic.
func DataTopic(deviceRoot, objectID string) string {
	return fmt.Sprintf("%s/%s/%s", deviceRoot, objectID, SubtopicData)
}

// AttributesTopic returns the camera's JSON attributes topic.
func AttributesTopic(deviceRoot, objectID string) string {
	return fmt.Sprintf("%s/%s/%s", deviceRoot, objectID, SubtopicAttributes)
}

// DeviceAvailabilityTopic returns the device-level availability topic,
// which is also the broker LWT target.
func DeviceAvailabilityTopic(deviceRoot string) string {
	return fmt.Sprintf("%s/%s", deviceRoot, SubtopicAvailability)
}

// DiscoveryTopic returns the retained Home Assistant discovery topic for
// the whole device: {prefix}/device/{deviceUniqueID}/config.
func DiscoveryTopic(prefix, deviceUniqueID string) string {
	return fmt.Sprintf("%s/device/%s/config", prefix, deviceUniqueID)
}
