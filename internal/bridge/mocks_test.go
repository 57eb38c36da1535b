package bridge

import (
	"context"
	"sync"

	"github.com/nerrad567/insteon-bridge/internal/device"
	"github.com/nerrad567/insteon-bridge/internal/modem"
	"github.com/nerrad567/insteon-bridge/internal/platform"
)

// mockModem implements Modem for testing.
type mockModem struct {
	mu          sync.Mutex
	connectErr  error
	connected   bool
	sent        []modem.Message
	sendErrs    []error // consumed one per Send; nil entries succeed
	handler     func(modem.Message)
	x10Handler  func(modem.X10Message)
	x10Sent     []x10Send
	disconnects int
}

type x10Send struct {
	House string
	Unit  int
	Cmds  []byte
}

func (m *mockModem) Connect(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

func (m *mockModem) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects++
	m.connected = false
	return nil
}

func (m *mockModem) Send(_ context.Context, msg modem.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sendErrs) > 0 {
		err := m.sendErrs[0]
		m.sendErrs = m.sendErrs[1:]
		if err != nil {
			return err
		}
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockModem) SendX10(_ context.Context, house string, unit int, cmds ...byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.x10Sent = append(m.x10Sent, x10Send{House: house, Unit: unit, Cmds: cmds})
	return nil
}

func (m *mockModem) OnX10(callback func(modem.X10Message)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.x10Handler = callback
}

func (m *mockModem) X10Sent() []x10Send {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]x10Send, len(m.x10Sent))
	copy(out, m.x10Sent)
	return out
}

func (m *mockModem) OnMessage(callback func(modem.Message)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = callback
}

func (m *mockModem) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockModem) State() modem.State {
	if m.IsConnected() {
		return modem.StateConnected
	}
	return modem.StateNotConnected
}

func (m *mockModem) Sent() []modem.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]modem.Message, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *mockModem) Handler() func(modem.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handler
}

func (m *mockModem) Disconnects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnects
}

// memStore is an in-memory device.Store shared by every opener call.
type memStore struct {
	mu      sync.Mutex
	devices []*device.Device
	opens   int
	saves   int
	loadErr error
}

func (s *memStore) opener() StoreOpener {
	return func(context.Context, string) (device.Store, error) {
		s.mu.Lock()
		s.opens++
		s.mu.Unlock()
		return memHandle{s}, nil
	}
}

func (s *memStore) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

func (s *memStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

type memHandle struct{ s *memStore }

func (h memHandle) Load(context.Context) ([]*device.Device, error) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if h.s.loadErr != nil {
		return nil, h.s.loadErr
	}
	out := make([]*device.Device, len(h.s.devices))
	for i, d := range h.s.devices {
		out[i] = d.DeepCopy()
	}
	return out, nil
}

func (h memHandle) Save(_ context.Context, devices []*device.Device) error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	h.s.devices = devices
	h.s.saves++
	return nil
}

func (memHandle) Close() error { return nil }

// mockPlatforms implements PlatformLoader and DeviceAnnouncer.
type mockPlatforms struct {
	mu        sync.Mutex
	loaded    []platform.Category
	announced []device.Address
	failOn    platform.Category
	err       error
}

func (p *mockPlatforms) LoadPlatform(_ context.Context, c platform.Category) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = append(p.loaded, c)
	if c == p.failOn {
		return p.err
	}
	return nil
}

func (p *mockPlatforms) Announce(_ context.Context, d *device.Device) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.announced = append(p.announced, d.Address)
	return nil
}

func (p *mockPlatforms) Loaded() []platform.Category {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]platform.Category, len(p.loaded))
	copy(out, p.loaded)
	return out
}

// mockEvents implements EventDispatcher.
type mockEvents struct {
	mu         sync.Mutex
	registered []device.Address
	dispatched []dispatchedEvent
}

type dispatchedEvent struct {
	Address device.Address
	Group   int
	On      bool
}

func (e *mockEvents) Register(d *device.Device) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registered = append(e.registered, d.Address)
}

func (e *mockEvents) Dispatch(_ context.Context, addr device.Address, group int, on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dispatched = append(e.dispatched, dispatchedEvent{addr, group, on})
	return nil
}

func (e *mockEvents) Registered() []device.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]device.Address, len(e.registered))
	copy(out, e.registered)
	return out
}

// mockSink implements StatusSink.
type mockSink struct {
	mu      sync.Mutex
	updates []statusUpdate
}

type statusUpdate struct {
	Address string
	Group   int
	Level   int
}

func (s *mockSink) WriteDeviceStatus(address string, group int, level int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, statusUpdate{address, group, level})
}

func (s *mockSink) Updates() []statusUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]statusUpdate, len(s.updates))
	copy(out, s.updates)
	return out
}

// countingLogger counts warnings.
type countingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *countingLogger) Debug(string, ...any) {}
func (l *countingLogger) Info(string, ...any)  {}
func (l *countingLogger) Error(string, ...any) {}

func (l *countingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *countingLogger) Warns() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.warns))
	copy(out, l.warns)
	return out
}

// newDevice builds a device of type t with its group layout.
func newDevice(addr string, t device.Type) *device.Device {
	d := &device.Device{Address: device.MustParseAddress(addr), Type: t}
	platform.ApplyLayout(d)
	return d
}
