package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/insteon-bridge/internal/device"
	"github.com/nerrad567/insteon-bridge/internal/infrastructure/config"
	"github.com/nerrad567/insteon-bridge/internal/modem"
)

// setX10Level drives an X10 device. X10 has no absolute levels, so a
// dimmable device is stepped from its last known level with Dim/Bright.
func (b *Bridge) setX10Level(ctx context.Context, addr device.Address, level int) error {
	d, err := b.registry.Get(addr)
	if err != nil {
		return err
	}
	g, err := d.Group(1)
	if err != nil {
		return fmt.Errorf("%w: %s group 1", ErrUnsupportedGroup, addr)
	}

	var cmds []byte
	switch {
	case level == 0:
		cmds = []byte{modem.X10Off}
	case d.Type != device.TypeX10Dimmable:
		cmds, level = []byte{modem.X10On}, levelOn
	case level == levelOn:
		cmds = []byte{modem.X10On}
	default:
		cmds, level = x10Steps(g.Value, level, dimSteps(g))
	}

	if err := b.modem.SendX10(ctx, d.X10House, d.X10Unit, cmds...); err != nil {
		return fmt.Errorf("setting %s: %w", addr, err)
	}
	// X10 receivers never answer.
	b.handleStatus(addr, 1, level)
	return nil
}

// x10Steps returns the commands moving a dimmer from level current to
// target, and the level it ends at. A dimmer that is off is switched on
// first, which brings it to full brightness.
func x10Steps(current, target, steps int) ([]byte, int) {
	var cmds []byte
	from := levelToStep(current, steps)
	if from == 0 {
		cmds = append(cmds, modem.X10On)
		from = steps
	}
	to := max(levelToStep(target, steps), 1)

	cmd := modem.X10Bright
	n := to - from
	if n < 0 {
		cmd, n = modem.X10Dim, -n
	}
	for i := 0; i < n; i++ {
		cmds = append(cmds, cmd)
	}
	return cmds, to * levelOn / steps
}

func levelToStep(level, steps int) int {
	return (level*steps + levelOn/2) / levelOn
}

func dimSteps(g *device.Group) int {
	if g.Steps > 0 {
		return g.Steps
	}
	return config.DefaultX10DimSteps
}

// handleX10 applies X10 traffic seen on the power line. Unit frames
// address a device; the command frame that follows acts on the units
// last addressed on the same house code.
func (b *Bridge) handleX10(msg modem.X10Message) {
	house := msg.House()
	if house == "" {
		b.logger.Debug("corrupt x10 frame ignored", "message", msg.String())
		return
	}

	if !msg.IsCommand() {
		b.x10Mu.Lock()
		b.x10Unit[house] = msg.Unit()
		b.x10Mu.Unlock()
		return
	}

	switch cmd := msg.Command(); cmd {
	case modem.X10AllUnitsOff, modem.X10AllLightsOff, modem.X10AllLightsOn:
		b.handleX10House(house, cmd)
	case modem.X10On, modem.X10Off, modem.X10Dim, modem.X10Bright:
		b.x10Mu.Lock()
		unit, ok := b.x10Unit[house]
		b.x10Mu.Unlock()
		if !ok {
			b.logger.Debug("x10 command without unit", "message", msg.String())
			return
		}
		addr, err := device.X10Address(house, unit)
		if err != nil {
			return
		}
		b.handleX10Unit(addr, cmd)
	default:
		b.logger.Debug("x10 command ignored", "message", msg.String())
	}
}

func (b *Bridge) handleX10Unit(addr device.Address, cmd byte) {
	d, err := b.registry.Get(addr)
	if err != nil {
		return
	}
	g, err := d.Group(1)
	if err != nil {
		return
	}

	level := 0
	switch cmd {
	case modem.X10On:
		level = levelOn
	case modem.X10Dim, modem.X10Bright:
		if d.Type != device.TypeX10Dimmable {
			return
		}
		delta := levelOn / dimSteps(g)
		if cmd == modem.X10Dim {
			delta = -delta
		}
		level = min(max(g.Value+delta, 0), levelOn)
	}
	b.handleStatus(addr, 1, level)
}

// handleX10House applies a house-wide command. The lights commands only
// reach dimmable modules.
func (b *Bridge) handleX10House(house string, cmd byte) {
	level := 0
	if cmd == modem.X10AllLightsOn {
		level = levelOn
	}
	for _, d := range b.registry.List() {
		if !d.Type.IsX10() || !strings.EqualFold(d.X10House, house) {
			continue
		}
		if cmd != modem.X10AllUnitsOff && d.Type != device.TypeX10Dimmable {
			continue
		}
		b.handleStatus(d.Address, 1, level)
	}
}
