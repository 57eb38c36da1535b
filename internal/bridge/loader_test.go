package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/insteon-bridge/internal/device"
	"github.com/nerrad567/insteon-bridge/internal/modem"
)

func TestLoader_LoadAppliesLayout(t *testing.T) {
	store := &memStore{devices: []*device.Device{
		{Address: "1A.2B.3C", Type: device.TypeDimmableLightingControlKeypadLinc6},
		{Address: "4D.5E.6F"},
	}}
	reg := device.NewRegistry()
	m := &mockModem{connected: true}
	l := NewLoader(reg, m, store.opener(), fastRefresh(), nil)

	if err := l.Load(context.Background(), "/unused", false); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	d, err := reg.Get("1A.2B.3C")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(d.Groups) != 6 {
		t.Errorf("KeypadLinc groups = %d, want 6", len(d.Groups))
	}
	if len(m.Sent()) != 0 {
		t.Errorf("Load(identifyUnknown=false) sent %d messages", len(m.Sent()))
	}

	if err := l.Load(context.Background(), "/unused", true); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	sent := m.Sent()
	if len(sent) != 1 || sent[0].Cmd1 != modem.Cmd1IDRequest || sent[0].To != [3]byte{0x4D, 0x5E, 0x6F} {
		t.Errorf("Load(identifyUnknown=true) sent %v", sent)
	}
}

func TestLoader_NoStore(t *testing.T) {
	reg := device.NewRegistry()
	reg.Put(&device.Device{Address: "1A.2B.3C"})
	l := NewLoader(reg, &mockModem{}, nil, fastRefresh(), nil)

	if err := l.Load(context.Background(), "/unused", false); err != nil {
		t.Errorf("Load() error = %v", err)
	}
	if reg.Count() != 1 {
		t.Error("Load() without a store changed the registry")
	}
	if err := l.Save(context.Background(), "/unused"); err != nil {
		t.Errorf("Save() error = %v", err)
	}
}

func TestLoader_RefreshRetriesTransientErrors(t *testing.T) {
	reg := device.NewRegistry()
	reg.Put(newDevice("1A.2B.3C", device.TypeSwitchedLightingControlSwitchLinc))
	reg.Put(newDevice("X10.A.01", device.TypeX10OnOff))

	m := &mockModem{connected: true, sendErrs: []error{errors.New("busy"), errors.New("busy")}}
	store := &memStore{}
	l := NewLoader(reg, m, store.opener(), fastRefresh(), nil)

	l.RefreshInBackground(context.Background(), "/unused")
	l.Wait()

	sent := m.Sent()
	if len(sent) != 1 || sent[0].Cmd1 != modem.Cmd1StatusRequest {
		t.Errorf("sent = %v, want one status request after retries", sent)
	}
	if store.Saves() != 1 {
		t.Errorf("saves = %d, want 1", store.Saves())
	}
	if len(store.devices) != 2 {
		t.Errorf("saved %d devices, want 2", len(store.devices))
	}
}

func TestLoader_RefreshGivesUpAfterRetries(t *testing.T) {
	reg := device.NewRegistry()
	reg.Put(newDevice("1A.2B.3C", device.TypeSwitchedLightingControlSwitchLinc))

	fail := errors.New("busy")
	m := &mockModem{connected: true, sendErrs: []error{fail, fail, fail, fail, fail}}
	l := NewLoader(reg, m, nil, RefreshOptions{RequestInterval: -1, SendRetries: 2, RetryBackoff: 1}, nil)

	l.RefreshInBackground(context.Background(), "/unused")
	l.Wait()

	// One attempt plus two retries consumed three errors.
	m.mu.Lock()
	left := len(m.sendErrs)
	m.mu.Unlock()
	if left != 2 {
		t.Errorf("remaining injected errors = %d, want 2", left)
	}
	if _, ok := l.ConsumeStatus("1A.2B.3C"); ok {
		t.Error("failed request left pending")
	}
}

func TestLoader_RefreshStopsWhenNotConnected(t *testing.T) {
	reg := device.NewRegistry()
	reg.Put(newDevice("1A.2B.3C", device.TypeSwitchedLightingControlSwitchLinc))
	reg.Put(newDevice("4D.5E.6F", device.TypeSwitchedLightingControlSwitchLinc))
	reg.Put(&device.Device{Address: "11.22.33"})

	m := &mockModem{sendErrs: []error{modem.ErrNotConnected, modem.ErrNotConnected, modem.ErrNotConnected}}
	store := &memStore{}
	l := NewLoader(reg, m, store.opener(), fastRefresh(), nil)

	l.RefreshInBackground(context.Background(), "/unused")
	l.Wait()

	// One failed status request and one failed ID request, no retries.
	m.mu.Lock()
	left := len(m.sendErrs)
	m.mu.Unlock()
	if left != 1 {
		t.Errorf("remaining injected errors = %d, want 1", left)
	}
	if store.Saves() != 1 {
		t.Errorf("saves = %d, want 1 even without a modem", store.Saves())
	}
}

func TestLoader_RefreshCancelled(t *testing.T) {
	reg := device.NewRegistry()
	reg.Put(newDevice("1A.2B.3C", device.TypeSwitchedLightingControlSwitchLinc))
	store := &memStore{}
	l := NewLoader(reg, &mockModem{connected: true}, store.opener(), RefreshOptions{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.RefreshInBackground(ctx, "/unused")
	l.Wait()

	if store.Saves() != 1 {
		t.Errorf("saves = %d, want 1 after cancellation", store.Saves())
	}
}

func TestLoader_X10NeverPersisted(t *testing.T) {
	store := &memStore{devices: []*device.Device{
		newDevice("1A.2B.3C", device.TypeDimmableLightingControlSwitchLinc),
		{Address: "X10.A.05", Type: device.TypeX10Dimmable, X10House: "a", X10Unit: 5},
	}}
	reg := device.NewRegistry()
	l := NewLoader(reg, &mockModem{connected: true}, store.opener(), fastRefresh(), nil)

	if err := l.Load(context.Background(), "/unused", false); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reg.Contains("X10.A.05") || !reg.Contains("1A.2B.3C") {
		t.Errorf("loaded %v, want the Insteon device only", reg.List())
	}

	reg.Put(&device.Device{Address: "X10.B.02", Type: device.TypeX10OnOff, X10House: "b", X10Unit: 2})
	if err := l.Save(context.Background(), "/unused"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(store.devices) != 1 || store.devices[0].Address != "1A.2B.3C" {
		t.Errorf("saved %v, want the Insteon device only", store.devices)
	}
}

func TestLoader_IdentifyClearsPendingStatus(t *testing.T) {
	reg := device.NewRegistry()
	reg.Put(&device.Device{Address: "1A.2B.3C"})
	m := &mockModem{connected: true}
	l := NewLoader(reg, m, nil, fastRefresh(), nil)

	l.expectStatus("1A.2B.3C", 1)
	l.identifyUnknown(context.Background())

	if _, ok := l.ConsumeStatus("1A.2B.3C"); ok {
		t.Error("ID request left a status request pending; its ACK would be read as a level")
	}
}

func TestLoader_ConsumeStatusDeadline(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{name: "fresh", elapsed: time.Second, want: true},
		{name: "at deadline", elapsed: statusReplyTimeout},
		{name: "expired", elapsed: time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader(device.NewRegistry(), &mockModem{}, nil, fastRefresh(), nil)
			now := time.Unix(1000, 0)
			l.now = func() time.Time { return now }

			l.expectStatus("1A.2B.3C", 2)
			now = now.Add(tt.elapsed)
			group, ok := l.ConsumeStatus("1A.2B.3C")
			if ok != tt.want || (ok && group != 2) {
				t.Errorf("ConsumeStatus() = %d, %v; want 2, %v", group, ok, tt.want)
			}
			if _, ok := l.ConsumeStatus("1A.2B.3C"); ok {
				t.Error("entry not cleared")
			}
		})
	}
}
