package hass

import (
	"encoding/json"
	"sync/atomic"

	"github.com/nerrad567/insteon-bridge/internal/device"
)

// State is the payload of a device group state topic.
type State struct {
	State string `json:"state"`
	Level int    `json:"level"`
}

// NewState builds the state of a group at level.
func NewState(level int) State {
	s := State{State: payloadOff, Level: level}
	if level > 0 {
		s.State = payloadOn
	}
	return s
}

// StatePublisher writes group levels to their retained state topics.
type StatePublisher struct {
	client Client
	logger Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

// NewStatePublisher creates a StatePublisher.
func NewStatePublisher(client Client, logger Logger) *StatePublisher {
	return &StatePublisher{client: client, logger: orNoop(logger)}
}

// WriteDeviceStatus publishes the level of one group. Failures are
// logged; the next update overwrites the retained state anyway.
func (p *StatePublisher) WriteDeviceStatus(address string, group int, level int) {
	payload, err := json.Marshal(NewState(level))
	if err != nil {
		return
	}

	topic := topics.DeviceState(device.Address(address).ID(), group)
	if err := p.client.PublishRetained(topic, payload); err != nil {
		p.failed.Add(1)
		p.logger.Warn("publishing state failed", "address", address, "group", group, "error", err)
		return
	}
	p.published.Add(1)
}

// Published returns how many states were published.
func (p *StatePublisher) Published() uint64 { return p.published.Load() }
