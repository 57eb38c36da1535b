package bridge

import (
	"github.com/nerrad567/insteon-bridge/internal/device"
	"github.com/nerrad567/insteon-bridge/internal/modem"
)

const levelOn = 0xFF

// handleMessage routes one received message into the registry. It runs
// on the modem's callback goroutine.
func (b *Bridge) handleMessage(msg modem.Message) {
	addr := msg.FromAddress()
	b.ensureDevice(addr)

	switch {
	case msg.IsIDBroadcast():
		b.handleIdentity(addr, msg)
	case msg.IsGroupBroadcast():
		b.handleGroupBroadcast(addr, msg)
	case msg.IsDirectAck():
		if group, ok := b.loader.ConsumeStatus(addr); ok {
			b.handleStatus(addr, group, int(msg.Cmd2))
		}
	case msg.IsNak():
		if _, ok := b.loader.ConsumeStatus(addr); ok {
			b.logger.Warn("status request rejected", "address", addr)
		}
	default:
		b.logger.Debug("message ignored", "message", msg.String())
	}
}

// ensureDevice records a sender the registry has not seen as an
// unidentified device.
func (b *Bridge) ensureDevice(addr device.Address) {
	if b.registry.Contains(addr) {
		return
	}
	b.registry.Put(&device.Device{Address: addr, Type: device.TypeUnknown})
	b.newDevices.Add(1)
	b.logger.Info("new device seen", "address", addr)
}

func (b *Bridge) handleIdentity(addr device.Address, msg modem.Message) {
	cat, subcat, firmware := msg.Identity()
	pins := b.pinned[addr]

	var changed bool
	err := b.registry.Update(addr, func(d *device.Device) error {
		oldCat, oldSubcat, wasIdentified := d.Cat, d.Subcat, d.Identified()
		d.Cat = cat
		d.Subcat = subcat
		d.Firmware = firmware
		if len(pins) > 0 {
			b.recordIdentity(addr, cat, subcat, firmware)
			for _, o := range pins {
				applyOverride(d, o)
			}
		}

		changed = d.Cat != oldCat || d.Subcat != oldSubcat || !wasIdentified
		if changed {
			classify(d)
		}
		return nil
	})
	if err != nil {
		b.logger.Warn("recording identity failed", "address", addr, "error", err)
		return
	}
	if !changed {
		return
	}

	d, err := b.registry.Get(addr)
	if err != nil {
		return
	}
	b.identified.Add(1)
	b.logger.Info("device identified",
		"address", addr,
		"type", d.Type,
		"cat", cat,
		"subcat", subcat,
	)

	if d.Identified() {
		if err := b.publisher.Announce(b.ctx, d); err != nil {
			b.logger.Warn("announcing device failed", "address", addr, "error", err)
		}
	}
}

func (b *Bridge) handleGroupBroadcast(addr device.Address, msg modem.Message) {
	b.groupBroadcasts.Add(1)

	group := msg.Group()
	level := 0
	if msg.On() {
		level = levelOn
	}
	b.handleStatus(addr, group, level)

	if b.events != nil {
		if err := b.events.Dispatch(b.ctx, addr, group, msg.On()); err != nil {
			b.logger.Warn("dispatching event failed", "address", addr, "group", group, "error", err)
		}
	}
}

// handleStatus stores the level of a group and forwards it to the sinks.
// Groups the device does not carry are not forwarded.
func (b *Bridge) handleStatus(addr device.Address, group, level int) {
	err := b.registry.Update(addr, func(d *device.Device) error {
		g, err := d.Group(group)
		if err != nil {
			return err
		}
		g.Value = level
		return nil
	})
	if err != nil {
		b.logger.Debug("status not recorded", "address", addr, "group", group, "error", err)
		return
	}

	b.statusUpdates.Add(1)
	for _, s := range b.sinks {
		s.WriteDeviceStatus(addr.String(), group, level)
	}
}
