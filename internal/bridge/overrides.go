package bridge

import (
	"errors"
	"fmt"

	"github.com/nerrad567/insteon-bridge/internal/device"
	"github.com/nerrad567/insteon-bridge/internal/infrastructure/config"
	"github.com/nerrad567/insteon-bridge/internal/platform"
)

// ApplyOverrides corrects the product identity of registered devices in
// declaration order, so a later override of the same field wins. Setting
// cat or subcat reclassifies the device; firmware and product_key both
// set the product key. Overrides for addresses not in
// the registry are logged and skipped. It returns how many were applied.
func ApplyOverrides(reg *device.Registry, overrides []config.OverrideConfig, logger Logger) int {
	if logger == nil {
		logger = noopLogger{}
	}

	applied := 0
	for i, o := range overrides {
		addr, err := device.ParseAddress(o.Address)
		if err != nil {
			logger.Warn("skipping override", "index", i, "error", err)
			continue
		}

		err = reg.Update(addr, func(d *device.Device) error {
			if applyOverride(d, o) {
				classify(d)
			}
			return nil
		})
		if errors.Is(err, device.ErrDeviceNotFound) {
			logger.Warn("override for unknown device skipped", "address", addr)
			continue
		}
		if err != nil {
			logger.Error("applying override failed", "address", addr, "error", err)
			continue
		}

		applied++
		logger.Debug("override applied", "address", addr)
	}
	return applied
}

// applyOverride sets the identity fields o pins and reports whether cat
// or subcat was set, which calls for reclassification. firmware is an
// alias of product_key; product_key wins when both are given.
func applyOverride(d *device.Device, o config.OverrideConfig) bool {
	if o.Firmware != nil {
		d.ProductKey = *o.Firmware
	}
	if o.ProductKey != nil {
		d.ProductKey = *o.ProductKey
	}
	if o.Cat != nil {
		d.Cat = *o.Cat
	}
	if o.Subcat != nil {
		d.Subcat = *o.Subcat
	}
	return o.Cat != nil || o.Subcat != nil
}

// reportedIdentity is what a device said about itself before overrides.
type reportedIdentity struct {
	cat, subcat, firmware, productKey int
	identified                        bool
}

// recordReported snapshots the identity of every registered device that
// carries overrides, before they are applied.
func (b *Bridge) recordReported() {
	for addr := range b.pinned {
		d, err := b.registry.Get(addr)
		if err != nil {
			continue
		}
		b.pinMu.Lock()
		b.reported[addr] = reportedIdentity{
			cat:        d.Cat,
			subcat:     d.Subcat,
			firmware:   d.Firmware,
			productKey: d.ProductKey,
			identified: d.Identified(),
		}
		b.pinMu.Unlock()
	}
}

// recordIdentity notes an identity broadcast from a device with overrides.
// The product key is never broadcast and keeps its recorded value.
func (b *Bridge) recordIdentity(addr device.Address, cat, subcat, firmware int) {
	b.pinMu.Lock()
	defer b.pinMu.Unlock()
	id := b.reported[addr]
	id.cat, id.subcat, id.firmware, id.identified = cat, subcat, firmware, true
	b.reported[addr] = id
}

// restoreReported puts back the reported identity of a device with
// overrides, so the store never holds configured values.
func (b *Bridge) restoreReported(d *device.Device) {
	b.pinMu.Lock()
	id, ok := b.reported[d.Address]
	b.pinMu.Unlock()
	if !ok {
		return
	}

	d.Cat, d.Subcat, d.Firmware, d.ProductKey = id.cat, id.subcat, id.firmware, id.productKey
	if !id.identified {
		d.Type = device.TypeUnknown
		d.Model, d.Description = "", ""
		d.Groups = nil
		return
	}
	classify(d)
}

// classify resolves the type of d from its category and subcategory and
// rebuilds its groups.
func classify(d *device.Device) {
	p, _ := device.LookupProduct(d.Cat, d.Subcat)
	d.Type = p.Type
	d.Model = p.Model
	d.Description = p.Desc
	platform.ApplyLayout(d)
}

// x10Type maps a platform hint to the X10 device type.
func x10Type(hint string) device.Type {
	switch platform.Category(hint) {
	case platform.Light:
		return device.TypeX10Dimmable
	case platform.BinarySensor:
		return device.TypeX10OnOffSensor
	default:
		return device.TypeX10OnOff
	}
}

// AddX10Devices registers the declared X10 devices. Dimmable devices get
// the configured step count on group 1. A later declaration of the same
// house/unit pair replaces the earlier device. It returns how many
// devices were added.
func AddX10Devices(reg *device.Registry, x10 []config.X10Config, logger Logger) int {
	if logger == nil {
		logger = noopLogger{}
	}

	added := 0
	for _, x := range x10 {
		d, err := newX10Device(x)
		if err != nil {
			logger.Warn("skipping X10 device", "housecode", x.HouseCode, "unitcode", x.UnitCode, "error", err)
			continue
		}

		if reg.Put(d) {
			logger.Warn("duplicate X10 device replaced", "address", d.Address)
		}
		added++
		logger.Debug("X10 device added", "address", d.Address, "type", d.Type)
	}
	return added
}

func newX10Device(x config.X10Config) (*device.Device, error) {
	addr, err := device.X10Address(x.HouseCode, x.UnitCode)
	if err != nil {
		return nil, err
	}

	d := &device.Device{
		Address:  addr,
		Type:     x10Type(x.Platform),
		X10House: x.HouseCode,
		X10Unit:  x.UnitCode,
	}
	d.Description = fmt.Sprintf("X10 %s", d.Type)
	platform.ApplyLayout(d)

	steps := x.DimSteps
	if steps == 0 {
		steps = config.DefaultX10DimSteps
	}
	if g, err := d.Group(1); err == nil {
		if err := g.SetSteps(steps); err != nil && !errors.Is(err, device.ErrStepsUnsupported) {
			return nil, err
		}
	}
	return d, nil
}
