package hass

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/insteon-bridge/internal/device"
)

// Controller drives a device group to a level.
type Controller interface {
	SetLevel(ctx context.Context, addr device.Address, group, level int) error
}

// Commands turns command topic messages into device commands. Payloads
// are ON, OFF or a level from 0 to 255.
type Commands struct {
	client     Client
	controller Controller
	logger     Logger
}

// NewCommands creates a command handler.
func NewCommands(client Client, controller Controller, logger Logger) *Commands {
	return &Commands{client: client, controller: controller, logger: orNoop(logger)}
}

// Start subscribes to the command topics of every device. Commands run
// with ctx.
func (c *Commands) Start(ctx context.Context) error {
	return c.client.Subscribe(topics.DeviceCommandFilter(), 1, func(topic string, payload []byte) error {
		return c.handle(ctx, topic, payload)
	})
}

func (c *Commands) handle(ctx context.Context, topic string, payload []byte) error {
	addr, group, err := parseCommandTopic(topic)
	if err != nil {
		return err
	}
	level, err := parseLevel(string(payload))
	if err != nil {
		return err
	}

	c.logger.Debug("command received", "address", addr, "group", group, "level", level)
	if err := c.controller.SetLevel(ctx, addr, group, level); err != nil {
		return fmt.Errorf("command to %s group %d: %w", addr, group, err)
	}
	return nil
}

// parseCommandTopic splits insteon/command/<id>/<group>.
func parseCommandTopic(topic string) (device.Address, int, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[1] != "command" {
		return "", 0, fmt.Errorf("%w: topic %q", ErrInvalidCommand, topic)
	}
	addr, err := device.ParseAddress(parts[2])
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	group, err := strconv.Atoi(parts[3])
	if err != nil || group < 1 {
		return "", 0, fmt.Errorf("%w: group %q", ErrInvalidCommand, parts[3])
	}
	return addr, group, nil
}

func parseLevel(payload string) (int, error) {
	switch p := strings.TrimSpace(payload); strings.ToUpper(p) {
	case payloadOn:
		return 0xFF, nil
	case payloadOff:
		return 0, nil
	default:
		level, err := strconv.Atoi(p)
		if err != nil || level < 0 || level > 0xFF {
			return 0, fmt.Errorf("%w: payload %q", ErrInvalidCommand, payload)
		}
		return level, nil
	}
}
