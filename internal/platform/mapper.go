package platform

import (
	"sort"

	"github.com/nerrad567/insteon-bridge/internal/device"
)

// entry maps each category of a device type to its groups.
type entry map[Category]GroupSet

// table is the capability table. It is built once and never mutated;
// every accessor returns fresh slices.
var table = map[device.Type]entry{
	device.TypeDimmableLightingControl:           {Light: Single(1), OnOffEvents: Single(1)},
	device.TypeDimmableLightingControlDinRail:    {Light: Single(1), OnOffEvents: Single(1)},
	device.TypeDimmableLightingControlFanLinc:    {Light: Single(1), Fan: Single(2), OnOffEvents: List(1, 2)},
	device.TypeDimmableLightingControlInLineLinc: {Light: Single(1), OnOffEvents: Single(1)},
	device.TypeDimmableLightingControlKeypadLinc6: {
		Light:       Single(1),
		Switch:      Range(2, 6),
		OnOffEvents: Range(1, 6),
	},
	device.TypeDimmableLightingControlKeypadLinc8: {
		Light:       Single(1),
		Switch:      Range(2, 8),
		OnOffEvents: Range(1, 8),
	},
	device.TypeDimmableLightingControlLampLinc:   {Light: Single(1), OnOffEvents: List(1, 2)},
	device.TypeDimmableLightingControlOutletLinc: {Light: Single(1), OnOffEvents: Single(1)},
	device.TypeDimmableLightingControlSwitchLinc: {Light: Single(1), OnOffEvents: Single(1)},
	device.TypeDimmableLightingControlToggleLinc: {Light: Single(1), OnOffEvents: Single(1)},

	device.TypeGeneralControllerControlLinc:      {OnOffEvents: Single(1)},
	device.TypeGeneralControllerMiniRemote4:      {OnOffEvents: Range(1, 4)},
	device.TypeGeneralControllerMiniRemote8:      {OnOffEvents: Range(1, 8)},
	device.TypeGeneralControllerMiniRemoteSwitch: {OnOffEvents: List(1, 2)},
	device.TypeGeneralControllerRemoteLinc:       {OnOffEvents: Single(1)},

	device.TypeSecurityHealthSafetyDoorSensor:      {BinarySensor: List(1, 3, 4), OnOffEvents: Single(1)},
	device.TypeSecurityHealthSafetyLeakSensor:      {BinarySensor: List(2, 4)},
	device.TypeSecurityHealthSafetyMotionSensor:    {BinarySensor: List(1, 2, 3, 4), OnOffEvents: Single(1)},
	device.TypeSecurityHealthSafetyOpenCloseSensor: {BinarySensor: Single(1)},
	device.TypeSecurityHealthSafetySmokebridge:     {BinarySensor: Single(1)},

	device.TypeSensorsActuatorsIOLink: {Switch: Single(1), BinarySensor: Single(2), OnOffEvents: List(1, 2)},

	device.TypeSwitchedLightingControl:              {Switch: Single(1), OnOffEvents: Single(1)},
	device.TypeSwitchedLightingControlApplianceLinc: {Switch: Single(1), OnOffEvents: Single(1)},
	device.TypeSwitchedLightingControlDinRail:       {Switch: Single(1), OnOffEvents: Single(1)},
	device.TypeSwitchedLightingControlInLineLinc:    {Switch: Single(1), OnOffEvents: Single(1)},
	device.TypeSwitchedLightingControlKeypadLinc6:   {Switch: Range(1, 6), OnOffEvents: Range(1, 6)},
	device.TypeSwitchedLightingControlKeypadLinc8:   {Switch: Range(1, 8), OnOffEvents: Range(1, 8)},
	device.TypeSwitchedLightingControlOnOffOutlet:   {Switch: List(1, 2), OnOffEvents: List(1, 2)},
	device.TypeSwitchedLightingControlOutletLinc:    {Switch: Single(1), OnOffEvents: Single(1)},
	device.TypeSwitchedLightingControlSwitchLinc:    {Switch: Single(1), OnOffEvents: Single(1)},
	device.TypeSwitchedLightingControlToggleLinc:    {Switch: Single(1), OnOffEvents: Single(1)},

	device.TypeClimateControlThermostat: {Climate: Single(1)},
	device.TypeWindowCovering:           {Cover: Single(1)},

	device.TypeX10Dimmable:    {Light: Single(1)},
	device.TypeX10OnOff:       {Switch: Single(1)},
	device.TypeX10OnOffSensor: {BinarySensor: Single(1)},
}

// PlatformsFor returns the categories a device type exposes, sorted.
// An unmapped type yields an empty slice.
func PlatformsFor(t device.Type) []Category {
	e, ok := table[t]
	if !ok {
		return []Category{}
	}
	out := make([]Category, 0, len(e))
	for c := range e {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GroupsFor returns the groups of t that category c applies to, or an
// empty slice when t does not expose c.
func GroupsFor(t device.Type, c Category) []int {
	set, ok := table[t][c]
	if !ok {
		return []int{}
	}
	return set.Groups()
}

// Has reports whether t exposes category c.
func Has(t device.Type, c Category) bool {
	_, ok := table[t][c]
	return ok
}

// Mapped reports whether t has any entry in the table.
func Mapped(t device.Type) bool {
	_, ok := table[t]
	return ok
}

// ForDevice is PlatformsFor on the device's type.
func ForDevice(d *device.Device) []Category {
	return PlatformsFor(d.Type)
}

// Union returns the distinct categories across devices, sorted.
func Union(devices []*device.Device) []Category {
	seen := make(map[Category]struct{})
	for _, d := range devices {
		for _, c := range PlatformsFor(d.Type) {
			seen[c] = struct{}{}
		}
	}
	out := make([]Category, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// commandCategories accept level commands. Sensors and climate only
// report state.
var commandCategories = map[Category]bool{Light: true, Switch: true, Fan: true, Cover: true}

// Commandable reports whether group of a t device exposed as c accepts
// level commands. The main load, group 1, and fans are driven; secondary
// buttons only report state.
func Commandable(t device.Type, c Category, group int) bool {
	if !commandCategories[c] || (group != 1 && c != Fan) {
		return false
	}
	set, ok := table[t][c]
	return ok && set.Contains(group)
}

// Controllable reports whether any category of t accepts commands on group.
func Controllable(t device.Type, group int) bool {
	for c := range table[t] {
		if Commandable(t, c, group) {
			return true
		}
	}
	return false
}
