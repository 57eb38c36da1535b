package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/insteon-bridge/internal/device"
	"github.com/nerrad567/insteon-bridge/internal/platform"
)

// PlatformLoader announces a platform category to the hosting platform.
// The loader finds the devices of the category on its own.
type PlatformLoader interface {
	LoadPlatform(ctx context.Context, category platform.Category) error
}

// DeviceAnnouncer is implemented by platform loaders that can announce a
// single device identified after setup.
type DeviceAnnouncer interface {
	Announce(ctx context.Context, d *device.Device) error
}

// EventDispatcher raises button events for registered devices.
type EventDispatcher interface {
	Register(d *device.Device)
	Dispatch(ctx context.Context, addr device.Address, group int, on bool) error
}

// Publisher signals the platform categories in use and registers event
// devices.
type Publisher struct {
	loader PlatformLoader
	events EventDispatcher
	logger Logger
}

// NewPublisher creates a Publisher. Either collaborator may be nil.
func NewPublisher(loader PlatformLoader, events EventDispatcher, logger Logger) *Publisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Publisher{loader: loader, events: events, logger: logger}
}

// Publish calls LoadPlatform once for every entity category any of
// devices maps to, in sorted order, then registers every device mapped
// to on/off events with the event dispatcher. A failed category does not
// stop the others; all failures are returned joined.
func (p *Publisher) Publish(ctx context.Context, devices []*device.Device) error {
	var errs []error

	if p.loader != nil {
		for _, c := range platform.Union(devices) {
			if !c.IsEntity() {
				continue
			}
			if err := p.loader.LoadPlatform(ctx, c); err != nil {
				p.logger.Error("loading platform failed", "platform", c, "error", err)
				errs = append(errs, fmt.Errorf("platform %s: %w", c, err))
				continue
			}
			p.logger.Info("platform loaded", "platform", c)
		}
	}

	if p.events != nil {
		registered := 0
		for _, d := range devices {
			if platform.Has(d.Type, platform.OnOffEvents) {
				p.events.Register(d)
				registered++
			}
		}
		p.logger.Info("event devices registered", "count", registered)
	}

	return errors.Join(errs...)
}

// Announce exposes one device identified after setup.
func (p *Publisher) Announce(ctx context.Context, d *device.Device) error {
	if p.events != nil && platform.Has(d.Type, platform.OnOffEvents) {
		p.events.Register(d)
	}
	if a, ok := p.loader.(DeviceAnnouncer); ok {
		return a.Announce(ctx, d)
	}
	return nil
}
