package bridge

import (
	"testing"

	"github.com/nerrad567/insteon-bridge/internal/device"
	"github.com/nerrad567/insteon-bridge/internal/infrastructure/config"
)

func intPtr(v int) *int { return &v }

func TestApplyOverrides_LastWriteWins(t *testing.T) {
	reg := device.NewRegistry()
	reg.Put(&device.Device{Address: "1A.2B.3C"})

	applied := ApplyOverrides(reg, []config.OverrideConfig{
		{Address: "1a2b3c", Cat: intPtr(0x02), Subcat: intPtr(0x0A), Firmware: intPtr(0x40)},
		{Address: "1A.2B.3C", Cat: intPtr(0x01), Subcat: intPtr(0x2E)},
		{Address: "1a:2b:3c", Firmware: intPtr(0x45)},
	}, nil)
	if applied != 3 {
		t.Errorf("applied = %d, want 3", applied)
	}

	d, err := reg.Get("1A.2B.3C")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if d.Type != device.TypeDimmableLightingControlFanLinc {
		t.Errorf("Type = %v, want FanLinc from the second override", d.Type)
	}
	if d.ProductKey != 0x45 {
		t.Errorf("ProductKey = %#x, want 0x45 from the third override", d.ProductKey)
	}
	if d.Firmware != 0 {
		t.Errorf("Firmware = %#x, want the reported value untouched", d.Firmware)
	}
	if d.Model != "2475F" {
		t.Errorf("Model = %q, want 2475F", d.Model)
	}
	if len(d.Groups) != 2 {
		t.Errorf("groups = %v, want FanLinc layout", d.Groups)
	}
}

func TestApplyOverrides_SubcatOnlyKeepsCat(t *testing.T) {
	reg := device.NewRegistry()
	reg.Put(&device.Device{Address: "1A.2B.3C", Cat: 0x02, Subcat: 0x0A, Type: device.TypeSwitchedLightingControlSwitchLinc})

	ApplyOverrides(reg, []config.OverrideConfig{{Address: "1a2b3c", Subcat: intPtr(0x37)}}, nil)

	d, _ := reg.Get("1A.2B.3C")
	if d.Type != device.TypeSwitchedLightingControlOnOffOutlet {
		t.Errorf("Type = %v, want OnOffOutlet", d.Type)
	}
}

func TestApplyOverrides_ProductKeyDoesNotReclassify(t *testing.T) {
	reg := device.NewRegistry()
	reg.Put(&device.Device{Address: "1A.2B.3C", Cat: 0x02, Subcat: 0x0A, Type: device.TypeSwitchedLightingControlSwitchLinc})

	ApplyOverrides(reg, []config.OverrideConfig{{Address: "1a2b3c", ProductKey: intPtr(0x000037)}}, nil)

	d, _ := reg.Get("1A.2B.3C")
	if d.ProductKey != 0x37 || d.Type != device.TypeSwitchedLightingControlSwitchLinc {
		t.Errorf("device = %+v, want product key set and type unchanged", d)
	}
}

func TestApplyOverrides_FirmwareSetsProductKey(t *testing.T) {
	tests := []struct {
		name     string
		override config.OverrideConfig
		want     int
	}{
		{name: "firmware alone", override: config.OverrideConfig{Firmware: intPtr(0x41)}, want: 0x41},
		{name: "product key alone", override: config.OverrideConfig{ProductKey: intPtr(0x37)}, want: 0x37},
		{name: "product key wins", override: config.OverrideConfig{Firmware: intPtr(0x41), ProductKey: intPtr(0x37)}, want: 0x37},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := device.NewRegistry()
			reg.Put(&device.Device{Address: "1A.2B.3C", Cat: 0x02, Subcat: 0x0A, Firmware: 0x45, Type: device.TypeSwitchedLightingControlSwitchLinc})

			o := tt.override
			o.Address = "1a2b3c"
			ApplyOverrides(reg, []config.OverrideConfig{o}, nil)

			d, _ := reg.Get("1A.2B.3C")
			if d.ProductKey != tt.want {
				t.Errorf("ProductKey = %#x, want %#x", d.ProductKey, tt.want)
			}
			if d.Firmware != 0x45 {
				t.Errorf("Firmware = %#x, want reported 0x45", d.Firmware)
			}
		})
	}
}

func TestApplyOverrides_UnknownAddressSkipped(t *testing.T) {
	reg := device.NewRegistry()
	logger := &countingLogger{}

	applied := ApplyOverrides(reg, []config.OverrideConfig{
		{Address: "aa.bb.cc", Cat: intPtr(1)},
		{Address: "not-an-address", Cat: intPtr(1)},
	}, logger)

	if applied != 0 {
		t.Errorf("applied = %d, want 0", applied)
	}
	if reg.Count() != 0 {
		t.Errorf("override created %d devices", reg.Count())
	}
	if len(logger.Warns()) != 2 {
		t.Errorf("warnings = %v, want 2", logger.Warns())
	}
}

func TestAddX10Devices(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.X10Config
		wantType  device.Type
		wantSteps int
	}{
		{
			name:      "light defaults to 22 steps",
			cfg:       config.X10Config{HouseCode: "a", UnitCode: 5, Platform: "light"},
			wantType:  device.TypeX10Dimmable,
			wantSteps: 22,
		},
		{
			name:      "light with configured steps",
			cfg:       config.X10Config{HouseCode: "b", UnitCode: 1, Platform: "light", DimSteps: 32},
			wantType:  device.TypeX10Dimmable,
			wantSteps: 32,
		},
		{
			name:     "binary sensor",
			cfg:      config.X10Config{HouseCode: "c", UnitCode: 16, Platform: "binary_sensor", DimSteps: 22},
			wantType: device.TypeX10OnOffSensor,
		},
		{
			name:     "switch",
			cfg:      config.X10Config{HouseCode: "p", UnitCode: 2, Platform: "switch", DimSteps: 22},
			wantType: device.TypeX10OnOff,
		},
		{
			name:     "unrecognised hint is on/off",
			cfg:      config.X10Config{HouseCode: "d", UnitCode: 3, Platform: "climate"},
			wantType: device.TypeX10OnOff,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := device.NewRegistry()
			if n := AddX10Devices(reg, []config.X10Config{tt.cfg}, nil); n != 1 {
				t.Fatalf("AddX10Devices() = %d, want 1", n)
			}

			addr, _ := device.X10Address(tt.cfg.HouseCode, tt.cfg.UnitCode)
			d, err := reg.Get(addr)
			if err != nil {
				t.Fatalf("Get(%s) error = %v", addr, err)
			}
			if d.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", d.Type, tt.wantType)
			}
			g, err := d.Group(1)
			if err != nil {
				t.Fatalf("Group(1) error = %v", err)
			}
			if g.Steps != tt.wantSteps {
				t.Errorf("group 1 steps = %d, want %d", g.Steps, tt.wantSteps)
			}
			if d.X10House != tt.cfg.HouseCode || d.X10Unit != tt.cfg.UnitCode {
				t.Errorf("house/unit = %s/%d", d.X10House, d.X10Unit)
			}
		})
	}
}

func TestAddX10Devices_DuplicateReplaces(t *testing.T) {
	reg := device.NewRegistry()
	logger := &countingLogger{}

	AddX10Devices(reg, []config.X10Config{
		{HouseCode: "a", UnitCode: 5, Platform: "light"},
		{HouseCode: "a", UnitCode: 5, Platform: "switch"},
	}, logger)

	if reg.Count() != 1 {
		t.Fatalf("registry has %d devices, want 1", reg.Count())
	}
	d, _ := reg.Get("X10.A.05")
	if d.Type != device.TypeX10OnOff {
		t.Errorf("Type = %v, want the later declaration", d.Type)
	}
	if len(logger.Warns()) != 1 {
		t.Errorf("warnings = %v, want 1", logger.Warns())
	}
}

func TestAddX10Devices_InvalidSkipped(t *testing.T) {
	reg := device.NewRegistry()
	n := AddX10Devices(reg, []config.X10Config{{HouseCode: "z", UnitCode: 1, Platform: "switch"}}, nil)
	if n != 0 || reg.Count() != 0 {
		t.Errorf("AddX10Devices() = %d with %d devices, want 0", n, reg.Count())
	}
}
