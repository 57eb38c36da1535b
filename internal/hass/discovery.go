package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/insteon-bridge/internal/device"
	"github.com/nerrad567/insteon-bridge/internal/infrastructure/config"
	"github.com/nerrad567/insteon-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/insteon-bridge/internal/platform"
)

const (
	manufacturer = "Insteon"

	payloadOn  = "ON"
	payloadOff = "OFF"

	stateTemplate = "{{ value_json.state }}"
	levelTemplate = "{{ value_json.level }}"
)

// Discovery publishes Home Assistant MQTT discovery configs for the
// devices in the registry.
type Discovery struct {
	client   Client
	registry *device.Registry
	prefix   string
	logger   Logger

	mu     sync.Mutex
	loaded map[platform.Category]bool
}

// NewDiscovery creates a Discovery publishing under cfg.DiscoveryPrefix.
func NewDiscovery(client Client, registry *device.Registry, cfg config.HASSConfig, logger Logger) *Discovery {
	return &Discovery{
		client:   client,
		registry: registry,
		prefix:   cfg.DiscoveryPrefix,
		logger:   orNoop(logger),
		loaded:   make(map[platform.Category]bool),
	}
}

// Start republishes every loaded platform whenever Home Assistant
// announces itself online.
func (d *Discovery) Start(ctx context.Context) error {
	return d.client.Subscribe(topics.HomeAssistantStatus(d.prefix), 1, func(_ string, payload []byte) error {
		if string(payload) != mqtt.PayloadOnline {
			return nil
		}
		d.logger.Info("home assistant online, republishing discovery")
		return d.republish(ctx)
	})
}

// LoadPlatform publishes the discovery configs of every registered
// device exposing category.
func (d *Discovery) LoadPlatform(_ context.Context, category platform.Category) error {
	if !category.IsEntity() {
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, category)
	}

	d.mu.Lock()
	d.loaded[category] = true
	d.mu.Unlock()

	var errs []error
	published := 0
	for _, dev := range d.registry.List() {
		if !platform.Has(dev.Type, category) {
			continue
		}
		n, err := d.publishDevice(dev, category)
		published += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	d.logger.Debug("discovery published", "platform", category, "entities", published)
	return errors.Join(errs...)
}

// Announce publishes the discovery configs of one device for all its
// entity categories.
func (d *Discovery) Announce(_ context.Context, dev *device.Device) error {
	var errs []error
	for _, c := range platform.ForDevice(dev) {
		if !c.IsEntity() {
			continue
		}
		d.mu.Lock()
		d.loaded[c] = true
		d.mu.Unlock()

		if _, err := d.publishDevice(dev, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Loaded returns the categories announced so far.
func (d *Discovery) Loaded() []platform.Category {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []platform.Category
	for _, c := range platform.Categories() {
		if d.loaded[c] {
			out = append(out, c)
		}
	}
	return out
}

func (d *Discovery) republish(ctx context.Context) error {
	var errs []error
	for _, c := range d.Loaded() {
		if err := d.LoadPlatform(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Discovery) publishDevice(dev *device.Device, category platform.Category) (int, error) {
	published := 0
	for _, n := range platform.GroupsFor(dev.Type, category) {
		g, err := dev.Group(n)
		if err != nil {
			// Devices loaded before their type was known carry no groups.
			g = &device.Group{Number: n, Name: string(category)}
		}

		payload, err := json.Marshal(entityConfig(dev, *g, category))
		if err != nil {
			return published, fmt.Errorf("encoding %s config for %s: %w", category, dev.Address, err)
		}

		topic := topics.Discovery(d.prefix, string(category), nodeID(dev.Address), objectID(n))
		if err := d.client.PublishRetained(topic, payload); err != nil {
			return published, fmt.Errorf("publishing %s config for %s: %w", category, dev.Address, err)
		}
		published++
	}
	return published, nil
}

func nodeID(addr device.Address) string { return "insteon_" + addr.ID() }

func objectID(group int) string { return fmt.Sprintf("group_%d", group) }

// entityConfig builds the discovery payload of one device group.
func entityConfig(dev *device.Device, g device.Group, category platform.Category) map[string]any {
	id := dev.Address.ID()
	state := topics.DeviceState(id, g.Number)
	command := topics.DeviceCommand(id, g.Number)

	name := g.Name
	if len(dev.Groups) > 1 {
		name = fmt.Sprintf("%s %d", g.Name, g.Number)
	}

	cfg := map[string]any{
		"name":                  name,
		"unique_id":             fmt.Sprintf("%s_%s_%d", nodeID(dev.Address), category, g.Number),
		"availability_topic":    topics.BridgeStatus(),
		"payload_available":     mqtt.PayloadOnline,
		"payload_not_available": mqtt.PayloadOffline,
		"device":                deviceInfo(dev),
	}

	switch category {
	case platform.Light:
		cfg["state_topic"] = state
		cfg["state_value_template"] = stateTemplate
		cfg["command_topic"] = command
		cfg["payload_on"] = payloadOn
		cfg["payload_off"] = payloadOff
		cfg["brightness_state_topic"] = state
		cfg["brightness_value_template"] = levelTemplate
		cfg["brightness_command_topic"] = command
		cfg["brightness_scale"] = 255
		cfg["on_command_type"] = "brightness"
	case platform.Switch:
		cfg["state_topic"] = state
		cfg["value_template"] = stateTemplate
		cfg["command_topic"] = command
		cfg["payload_on"] = payloadOn
		cfg["payload_off"] = payloadOff
		cfg["state_on"] = payloadOn
		cfg["state_off"] = payloadOff
	case platform.BinarySensor:
		cfg["state_topic"] = state
		cfg["value_template"] = stateTemplate
		cfg["payload_on"] = payloadOn
		cfg["payload_off"] = payloadOff
	case platform.Fan:
		cfg["state_topic"] = state
		cfg["state_value_template"] = stateTemplate
		cfg["command_topic"] = command
		cfg["payload_on"] = payloadOn
		cfg["payload_off"] = payloadOff
		cfg["percentage_state_topic"] = state
		cfg["percentage_value_template"] = levelTemplate
		cfg["percentage_command_topic"] = command
		cfg["speed_range_min"] = 1
		cfg["speed_range_max"] = 255
	case platform.Cover:
		cfg["command_topic"] = command
		cfg["payload_open"] = payloadOn
		cfg["payload_close"] = payloadOff
		cfg["payload_stop"] = nil
		cfg["position_topic"] = state
		cfg["position_template"] = levelTemplate
		cfg["set_position_topic"] = command
		cfg["position_open"] = 255
		cfg["position_closed"] = 0
	case platform.Climate:
		cfg["modes"] = []string{"off", "auto"}
		cfg["mode_state_topic"] = state
		cfg["mode_state_template"] = "{{ 'auto' if value_json.state == 'ON' else 'off' }}"
	}

	// Groups the bridge cannot drive are published read-only.
	if !platform.Commandable(dev.Type, category, g.Number) {
		for _, k := range commandKeys {
			delete(cfg, k)
		}
	}
	return cfg
}

var commandKeys = []string{
	"command_topic",
	"brightness_command_topic",
	"percentage_command_topic",
	"set_position_topic",
	"on_command_type",
}

func deviceInfo(dev *device.Device) map[string]any {
	name := dev.Description
	if name == "" {
		name = dev.Type.String()
	}
	model := dev.Model
	if model == "" {
		model = dev.Type.String()
	}

	info := map[string]any{
		"identifiers":  []string{nodeID(dev.Address)},
		"name":         fmt.Sprintf("%s %s", name, dev.Address),
		"manufacturer": manufacturer,
		"model":        model,
	}
	if !dev.Address.IsX10() {
		info["sw_version"] = fmt.Sprintf("0x%02X", dev.Firmware)
	}
	return info
}
