// Package mqtt provides the broker connection used to talk to Home Assistant.
//
// The bridge publishes retained discovery configs, device state and its own
// availability, and non-retained button events. The client wraps
// paho.mqtt.golang and adds:
//   - LWT-based availability on insteon/bridge/status
//   - Subscription tracking and restoration after reconnect
//   - Panic recovery around message handlers
//
// Topic builders live on the Topics type:
//
//	mqtt.Topics{}.Discovery("homeassistant", "light", "insteon_1a2b3c", "group_1")
//	// homeassistant/light/insteon_1a2b3c/group_1/config
package mqtt
