package device

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the in-memory collection of known devices keyed by address.
//
// It is shared between setup, the background refresh and the message
// router, so all methods are safe for concurrent use. Devices handed in
// and out are deep copies.
type Registry struct {
	mu      sync.RWMutex
	devices map[Address]*Device

	logger   Logger
	loggerMu sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[Address]*Device),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	defer r.loggerMu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

func (r *Registry) log() Logger {
	r.loggerMu.RLock()
	defer r.loggerMu.RUnlock()
	return r.logger
}

// Put stores d, replacing any device with the same address. It reports
// whether a device was replaced.
func (r *Registry) Put(d *Device) bool {
	cpy := d.DeepCopy()
	if cpy.UpdatedAt.IsZero() {
		cpy.UpdatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	_, existed := r.devices[cpy.Address]
	r.devices[cpy.Address] = cpy
	r.mu.Unlock()

	r.log().Debug("device stored", "address", cpy.Address, "type", cpy.Type, "replaced", existed)
	return existed
}

// Get returns a copy of the device at addr or ErrDeviceNotFound.
func (r *Registry) Get(addr Address) (*Device, error) {
	r.mu.RLock()
	d, ok := r.devices[addr]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, addr)
	}
	return d.DeepCopy(), nil
}

// Contains reports whether addr is registered.
func (r *Registry) Contains(addr Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.devices[addr]
	return ok
}

// Update applies fn to the stored device under the write lock.
func (r *Registry) Update(addr Address, fn func(*Device) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[addr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, addr)
	}

	cpy := d.DeepCopy()
	if err := fn(cpy); err != nil {
		return err
	}
	cpy.Address = addr
	cpy.UpdatedAt = time.Now().UTC()
	r.devices[addr] = cpy
	return nil
}

// Remove deletes the device at addr.
func (r *Registry) Remove(addr Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[addr]; !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, addr)
	}
	delete(r.devices, addr)
	return nil
}

// Replace swaps the whole registry content for devices.
func (r *Registry) Replace(devices []*Device) {
	next := make(map[Address]*Device, len(devices))
	for _, d := range devices {
		next[d.Address] = d.DeepCopy()
	}

	r.mu.Lock()
	r.devices = next
	r.mu.Unlock()

	r.log().Info("device registry loaded", "count", len(next))
}

// List returns copies of all devices sorted by address.
func (r *Registry) List() []*Device {
	r.mu.RLock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d.DeepCopy())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Unidentified returns the addresses of Insteon devices whose type is unknown.
func (r *Registry) Unidentified() []Address {
	r.mu.RLock()
	var out []Address
	for addr, d := range r.devices {
		if !d.Identified() && !addr.IsX10() {
			out = append(out, addr)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
