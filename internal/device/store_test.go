package device

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T, workdir string) *SQLiteStore {
	t.Helper()
	store, err := OpenStore(context.Background(), workdir, true, 5)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() }) //nolint:errcheck // Test cleanup
	return store
}

func TestSQLiteStore_EmptyWorkdir(t *testing.T) {
	workdir := filepath.Join(t.TempDir(), "data")
	store := openTestStore(t, workdir)

	if store.Path() != filepath.Join(workdir, StoreFileName) {
		t.Errorf("Path() = %q", store.Path())
	}
	if _, err := os.Stat(store.Path()); err != nil {
		t.Errorf("store file not created: %v", err)
	}

	devices, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("Load() on fresh store = %d devices, want 0", len(devices))
	}
}

func TestSQLiteStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	workdir := t.TempDir()
	store := openTestStore(t, workdir)

	x10, _ := X10Address("c", 3)
	saved := []*Device{
		{
			Address: "1A.2B.3C", Type: TypeDimmableLightingControlFanLinc,
			Cat: 0x01, Subcat: 0x2E, Firmware: 0x45, ProductKey: 0x000037,
			Model: "2475F", Description: "FanLinc",
			Groups: []Group{
				{Number: 1, Name: "light", Dimmable: true, Steps: 0, Value: 128},
				{Number: 2, Name: "fan", Value: 0},
			},
		},
		{Address: "4D.5E.6F", Type: TypeUnknown},
		{Address: x10, Type: TypeX10Dimmable, X10House: "c", X10Unit: 3,
			Groups: []Group{{Number: 1, Dimmable: true, Steps: 22}}},
	}
	if err := store.Save(ctx, saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Saving again replaces rather than appends.
	if err := store.Save(ctx, saved); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("Load() = %d devices, want 3", len(loaded))
	}

	fan := loaded[0]
	if fan.Address != "1A.2B.3C" || fan.Type != TypeDimmableLightingControlFanLinc {
		t.Errorf("loaded[0] = %s %v", fan.Address, fan.Type)
	}
	if fan.Cat != 0x01 || fan.Subcat != 0x2E || fan.Firmware != 0x45 || fan.ProductKey != 0x37 {
		t.Errorf("product identity = %#x/%#x/%#x/%#x", fan.Cat, fan.Subcat, fan.Firmware, fan.ProductKey)
	}
	if len(fan.Groups) != 2 || fan.Groups[0].Value != 128 || !fan.Groups[0].Dimmable {
		t.Errorf("groups = %+v", fan.Groups)
	}

	if loaded[1].Identified() {
		t.Error("unknown device came back identified")
	}
	if loaded[1].Groups == nil || len(loaded[1].Groups) != 0 {
		t.Errorf("nil groups should load as empty, got %#v", loaded[1].Groups)
	}

	x := loaded[2]
	if !x.Address.IsX10() || x.X10House != "c" || x.X10Unit != 3 || x.Groups[0].Steps != 22 {
		t.Errorf("x10 device = %+v", x)
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	workdir := t.TempDir()

	first, err := OpenStore(ctx, workdir, true, 5)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	if err := first.Save(ctx, []*Device{{Address: "01.02.03", Type: TypeWindowCovering}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	first.Close() //nolint:errcheck // Test cleanup

	second := openTestStore(t, workdir)
	loaded, err := second.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 1 || loaded[0].Type != TypeWindowCovering {
		t.Errorf("Load() after reopen = %+v", loaded)
	}
}
