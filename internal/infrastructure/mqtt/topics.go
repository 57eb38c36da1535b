package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the base for every topic the bridge owns. Discovery
// topics live under the Home Assistant discovery prefix instead.
const TopicPrefix = "insteon"

// Availability payloads published on the bridge status topic.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Topics provides builders for the bridge's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.DeviceState("1a2b3c", 1)
//	// Returns: "insteon/state/1a2b3c/1"
type Topics struct{}

var topics Topics

// BridgeStatus returns the retained availability topic. The broker
// publishes "offline" here via LWT if the bridge dies.
//
// Example: insteon/bridge/status
func (Topics) BridgeStatus() string {
	return TopicPrefix + "/bridge/status"
}

// DeviceState returns the state topic for one group of a device.
//
// Example: insteon/state/1a2b3c/1
func (Topics) DeviceState(address string, group int) string {
	return fmt.Sprintf("%s/state/%s/%d", TopicPrefix, address, group)
}

// DeviceCommand returns the command topic for one group of a device.
//
// Example: insteon/command/1a2b3c/1
func (Topics) DeviceCommand(address string, group int) string {
	return fmt.Sprintf("%s/command/%s/%d", TopicPrefix, address, group)
}

// DeviceCommandFilter matches the command topics of every device group.
//
// Example: insteon/command/+/+
func (Topics) DeviceCommandFilter() string {
	return TopicPrefix + "/command/+/+"
}

// Event returns the topic for button events raised by a device, under base.
//
// Example: insteon/event/1a2b3c
func (Topics) Event(base, address string) string {
	return strings.TrimSuffix(base, "/") + "/" + address
}

// Discovery returns a Home Assistant discovery config topic.
//
// Example: homeassistant/light/insteon_1a2b3c/group_1/config
func (Topics) Discovery(prefix, component, nodeID, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", strings.TrimSuffix(prefix, "/"), component, nodeID, objectID)
}

// HomeAssistantStatus returns the topic Home Assistant announces its
// birth and will messages on.
//
// Example: homeassistant/status
func (Topics) HomeAssistantStatus(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/status"
}
