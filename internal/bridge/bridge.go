package bridge

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/insteon-bridge/internal/device"
	"github.com/nerrad567/insteon-bridge/internal/infrastructure/config"
	"github.com/nerrad567/insteon-bridge/internal/modem"
	"github.com/nerrad567/insteon-bridge/internal/platform"
)

// Modem is the slice of *modem.Manager the bridge uses.
type Modem interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Send(ctx context.Context, msg modem.Message) error
	SendX10(ctx context.Context, house string, unit int, cmds ...byte) error
	OnMessage(callback func(modem.Message))
	OnX10(callback func(modem.X10Message))
	IsConnected() bool
	State() modem.State
}

// StatusSink receives every group level the bridge learns.
type StatusSink interface {
	WriteDeviceStatus(address string, group int, level int)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds the collaborators and configuration of a Bridge.
type Options struct {
	// Modem and Registry are required.
	Modem    Modem
	Registry *device.Registry

	// Store opens the persisted registry. Nil disables persistence.
	Store   StoreOpener
	WorkDir string

	Overrides []config.OverrideConfig
	X10       []config.X10Config

	// Platforms and Events are the hosting platform adapters.
	Platforms PlatformLoader
	Events    EventDispatcher

	// Sinks receive status updates, e.g. state publishing and telemetry.
	Sinks []StatusSink

	Refresh RefreshOptions
	Logger  Logger
}

// Stats holds bridge counters.
type Stats struct {
	Identified      uint64
	StatusUpdates   uint64
	GroupBroadcasts uint64
	NewDevices      uint64
}

// Bridge owns the device registry and routes modem traffic into it.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	modem     Modem
	registry  *device.Registry
	loader    *Loader
	publisher *Publisher
	events    EventDispatcher
	sinks     []StatusSink
	workdir   string
	overrides []config.OverrideConfig
	x10       []config.X10Config
	logger    Logger

	// pinned holds the overrides per device; they are re-applied on
	// every identity the device reports. reported is what pinned devices
	// said about themselves, which is what gets persisted.
	pinned   map[device.Address][]config.OverrideConfig
	pinMu    sync.Mutex
	reported map[device.Address]reportedIdentity

	x10Mu   sync.Mutex
	x10Unit map[string]int

	setupOnce atomic.Bool
	ctx       context.Context
	wg        sync.WaitGroup

	identified      atomic.Uint64
	statusUpdates   atomic.Uint64
	groupBroadcasts atomic.Uint64
	newDevices      atomic.Uint64
}

// New creates a Bridge. Nothing happens until Setup.
func New(opts Options) (*Bridge, error) {
	if opts.Modem == nil {
		return nil, ErrModemRequired
	}
	if opts.Registry == nil {
		return nil, ErrRegistryRequired
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	pinned := make(map[device.Address][]config.OverrideConfig)
	for _, o := range opts.Overrides {
		// Invalid addresses are reported by ApplyOverrides during Setup.
		if addr, err := device.ParseAddress(o.Address); err == nil {
			pinned[addr] = append(pinned[addr], o)
		}
	}

	b := &Bridge{
		modem:     opts.Modem,
		registry:  opts.Registry,
		loader:    NewLoader(opts.Registry, opts.Modem, opts.Store, opts.Refresh, logger),
		publisher: NewPublisher(opts.Platforms, opts.Events, logger),
		events:    opts.Events,
		sinks:     opts.Sinks,
		workdir:   opts.WorkDir,
		overrides: opts.Overrides,
		x10:       opts.X10,
		logger:    logger,
		pinned:    pinned,
		reported:  make(map[device.Address]reportedIdentity),
		x10Unit:   make(map[string]int),
		ctx:       context.Background(),
	}
	b.loader.restore = b.restoreReported
	return b, nil
}

// Registry returns the device registry.
func (b *Bridge) Registry() *device.Registry { return b.registry }

// Loader returns the registry loader.
func (b *Bridge) Loader() *Loader { return b.loader }

// Setup connects to the modem and brings the registry and the hosting
// platform up to date. A modem that cannot be reached is logged and
// Setup returns nil with nothing loaded. The modem is disconnected when
// ctx is cancelled.
func (b *Bridge) Setup(ctx context.Context) error {
	if !b.setupOnce.CompareAndSwap(false, true) {
		return ErrAlreadySetup
	}
	b.ctx = ctx

	if err := b.modem.Connect(ctx); err != nil {
		var connErr *modem.ConnectionError
		if errors.As(err, &connErr) {
			b.logger.Error("could not connect to modem", "target", connErr.Target, "error", connErr.Err)
		} else {
			b.logger.Error("could not connect to modem", "error", err)
		}
		return nil
	}

	if err := b.loader.Load(ctx, b.workdir, false); err != nil {
		b.logger.Warn("starting with an empty device registry", "error", err)
	}

	b.modem.OnMessage(b.handleMessage)
	b.modem.OnX10(b.handleX10)
	b.loader.RefreshInBackground(ctx, b.workdir)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		<-ctx.Done()
		if err := b.modem.Disconnect(); err != nil {
			b.logger.Warn("modem disconnect failed", "error", err)
		}
	}()

	b.recordReported()
	applied := ApplyOverrides(b.registry, b.overrides, b.logger)
	added := AddX10Devices(b.registry, b.x10, b.logger)

	devices := b.registry.List()
	b.logger.Info("setting up platforms",
		"devices", len(devices),
		"overrides", applied,
		"x10", added,
	)
	if err := b.publisher.Publish(ctx, devices); err != nil {
		b.logger.Warn("some platforms failed to load", "error", err)
	}
	return nil
}

// Wait blocks until the background refresh has finished and, once the
// setup context is cancelled, the modem is disconnected.
func (b *Bridge) Wait() {
	b.loader.Wait()
	b.wg.Wait()
}

// Stats returns current counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Identified:      b.identified.Load(),
		StatusUpdates:   b.statusUpdates.Load(),
		GroupBroadcasts: b.groupBroadcasts.Load(),
		NewDevices:      b.newDevices.Load(),
	}
}

// SetLevel drives the main load of a device, or the fan of a FanLinc, to
// level (0 is off). Groups that only report state, like keypad buttons,
// are rejected with ErrUnsupportedGroup.
func (b *Bridge) SetLevel(ctx context.Context, addr device.Address, group, level int) error {
	if level < 0 || level > 0xFF {
		return fmt.Errorf("bridge: level %d out of range", level)
	}
	d, err := b.registry.Get(addr)
	if err != nil {
		return err
	}
	if !platform.Controllable(d.Type, group) {
		return fmt.Errorf("%w: %s group %d", ErrUnsupportedGroup, addr, group)
	}
	if addr.IsX10() {
		return b.setX10Level(ctx, addr, level)
	}

	to, err := addr.Bytes()
	if err != nil {
		return err
	}
	cmd, status := modem.LevelCommand(to, byte(level)), modem.StatusRequest(to)
	if slices.Contains(platform.GroupsFor(d.Type, platform.Fan), group) {
		cmd, status = modem.FanCommand(to, byte(level)), modem.FanStatusRequest(to)
	}

	if err := b.modem.Send(ctx, cmd); err != nil {
		return fmt.Errorf("setting %s: %w", addr, err)
	}
	b.loader.expectStatus(addr, group)
	return b.modem.Send(ctx, status)
}
