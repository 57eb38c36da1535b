package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/insteon-bridge/internal/device"
	"github.com/nerrad567/insteon-bridge/internal/infrastructure/config"
	"github.com/nerrad567/insteon-bridge/internal/platform"
)

// Event types.
const (
	EventButtonOn  = "insteon.button_on"
	EventButtonOff = "insteon.button_off"
)

// Event is the payload published for a button press.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"event_type"`
	Address   string    `json:"address"`
	Group     int       `json:"group"`
	Button    string    `json:"button,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Events dispatches on/off button events for registered devices.
type Events struct {
	client Client
	base   string
	logger Logger

	mu      sync.RWMutex
	devices map[device.Address]device.Type

	// OnEvent, when set, sees every published event.
	OnEvent func(Event)
}

// NewEvents creates an event dispatcher publishing under cfg.EventTopic.
func NewEvents(client Client, cfg config.HASSConfig, logger Logger) *Events {
	return &Events{
		client:  client,
		base:    cfg.EventTopic,
		logger:  orNoop(logger),
		devices: make(map[device.Address]device.Type),
	}
}

// Register subscribes d to on/off events. Registering again updates the
// device type.
func (e *Events) Register(d *device.Device) {
	e.mu.Lock()
	e.devices[d.Address] = d.Type
	e.mu.Unlock()
	e.logger.Debug("event device registered", "address", d.Address, "type", d.Type)
}

// Registered reports whether addr raises events.
func (e *Events) Registered(addr device.Address) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.devices[addr]
	return ok
}

// Dispatch publishes the event for a group on/off broadcast. Broadcasts
// from unregistered devices, or for groups without events, are ignored.
func (e *Events) Dispatch(_ context.Context, addr device.Address, group int, on bool) error {
	e.mu.RLock()
	t, ok := e.devices[addr]
	e.mu.RUnlock()
	if !ok {
		return nil
	}

	groups := platform.GroupsFor(t, platform.OnOffEvents)
	if !contains(groups, group) {
		return nil
	}

	ev := Event{
		ID:        uuid.NewString(),
		Type:      EventButtonOff,
		Address:   addr.String(),
		Group:     group,
		Button:    buttonLabel(groups, group),
		Timestamp: time.Now().UTC(),
	}
	if on {
		ev.Type = EventButtonOn
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := e.client.PublishEvent(topics.Event(e.base, addr.ID()), payload); err != nil {
		return fmt.Errorf("publishing %s for %s: %w", ev.Type, addr, err)
	}

	e.logger.Debug("event published", "type", ev.Type, "address", addr, "group", group)
	if e.OnEvent != nil {
		e.OnEvent(ev)
	}
	return nil
}

// buttonLabel names the buttons of multi-button devices a, b, c, ...
// Single-button devices have no label.
func buttonLabel(groups []int, group int) string {
	if len(groups) < 2 || group < 1 || group > 26 {
		return ""
	}
	return string(rune('a' + group - 1))
}

func contains(groups []int, g int) bool {
	for _, n := range groups {
		if n == g {
			return true
		}
	}
	return false
}
