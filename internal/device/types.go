package device

import (
	"fmt"
	"time"
)

// Type is the concrete type-class of a device. The set is closed and
// flat: there is no hierarchy between types.
type Type int

// Device types.
const (
	TypeUnknown Type = iota
	TypeDimmableLightingControl
	TypeDimmableLightingControlDinRail
	TypeDimmableLightingControlFanLinc
	TypeDimmableLightingControlInLineLinc
	TypeDimmableLightingControlKeypadLinc6
	TypeDimmableLightingControlKeypadLinc8
	TypeDimmableLightingControlLampLinc
	TypeDimmableLightingControlOutletLinc
	TypeDimmableLightingControlSwitchLinc
	TypeDimmableLightingControlToggleLinc
	TypeGeneralControllerControlLinc
	TypeGeneralControllerMiniRemote4
	TypeGeneralControllerMiniRemote8
	TypeGeneralControllerMiniRemoteSwitch
	TypeGeneralControllerRemoteLinc
	TypeSecurityHealthSafetyDoorSensor
	TypeSecurityHealthSafetyLeakSensor
	TypeSecurityHealthSafetyMotionSensor
	TypeSecurityHealthSafetyOpenCloseSensor
	TypeSecurityHealthSafetySmokebridge
	TypeSensorsActuatorsIOLink
	TypeSwitchedLightingControl
	TypeSwitchedLightingControlApplianceLinc
	TypeSwitchedLightingControlDinRail
	TypeSwitchedLightingControlInLineLinc
	TypeSwitchedLightingControlKeypadLinc6
	TypeSwitchedLightingControlKeypadLinc8
	TypeSwitchedLightingControlOnOffOutlet
	TypeSwitchedLightingControlOutletLinc
	TypeSwitchedLightingControlSwitchLinc
	TypeSwitchedLightingControlToggleLinc
	TypeClimateControlThermostat
	TypeWindowCovering
	TypeX10Dimmable
	TypeX10OnOff
	TypeX10OnOffSensor

	typeCount
)

var typeNames = [typeCount]string{
	TypeUnknown:                              "Unknown",
	TypeDimmableLightingControl:              "DimmableLightingControl",
	TypeDimmableLightingControlDinRail:       "DimmableLightingControl_DinRail",
	TypeDimmableLightingControlFanLinc:       "DimmableLightingControl_FanLinc",
	TypeDimmableLightingControlInLineLinc:    "DimmableLightingControl_InLineLinc",
	TypeDimmableLightingControlKeypadLinc6:   "DimmableLightingControl_KeypadLinc_6",
	TypeDimmableLightingControlKeypadLinc8:   "DimmableLightingControl_KeypadLinc_8",
	TypeDimmableLightingControlLampLinc:      "DimmableLightingControl_LampLinc",
	TypeDimmableLightingControlOutletLinc:    "DimmableLightingControl_OutletLinc",
	TypeDimmableLightingControlSwitchLinc:    "DimmableLightingControl_SwitchLinc",
	TypeDimmableLightingControlToggleLinc:    "DimmableLightingControl_ToggleLinc",
	TypeGeneralControllerControlLinc:         "GeneralController_ControlLinc",
	TypeGeneralControllerMiniRemote4:         "GeneralController_MiniRemote_4",
	TypeGeneralControllerMiniRemote8:         "GeneralController_MiniRemote_8",
	TypeGeneralControllerMiniRemoteSwitch:    "GeneralController_MiniRemote_Switch",
	TypeGeneralControllerRemoteLinc:          "GeneralController_RemoteLinc",
	TypeSecurityHealthSafetyDoorSensor:       "SecurityHealthSafety_DoorSensor",
	TypeSecurityHealthSafetyLeakSensor:       "SecurityHealthSafety_LeakSensor",
	TypeSecurityHealthSafetyMotionSensor:     "SecurityHealthSafety_MotionSensor",
	TypeSecurityHealthSafetyOpenCloseSensor:  "SecurityHealthSafety_OpenCloseSensor",
	TypeSecurityHealthSafetySmokebridge:      "SecurityHealthSafety_Smokebridge",
	TypeSensorsActuatorsIOLink:               "SensorsActuators_IOLink",
	TypeSwitchedLightingControl:              "SwitchedLightingControl",
	TypeSwitchedLightingControlApplianceLinc: "SwitchedLightingControl_ApplianceLinc",
	TypeSwitchedLightingControlDinRail:       "SwitchedLightingControl_DinRail",
	TypeSwitchedLightingControlInLineLinc:    "SwitchedLightingControl_InLineLinc",
	TypeSwitchedLightingControlKeypadLinc6:   "SwitchedLightingControl_KeypadLinc_6",
	TypeSwitchedLightingControlKeypadLinc8:   "SwitchedLightingControl_KeypadLinc_8",
	TypeSwitchedLightingControlOnOffOutlet:   "SwitchedLightingControl_OnOffOutlet",
	TypeSwitchedLightingControlOutletLinc:    "SwitchedLightingControl_OutletLinc",
	TypeSwitchedLightingControlSwitchLinc:    "SwitchedLightingControl_SwitchLinc",
	TypeSwitchedLightingControlToggleLinc:    "SwitchedLightingControl_ToggleLinc",
	TypeClimateControlThermostat:             "ClimateControl_Thermostat",
	TypeWindowCovering:                       "WindowCovering",
	TypeX10Dimmable:                          "X10Dimmable",
	TypeX10OnOff:                             "X10OnOff",
	TypeX10OnOffSensor:                       "X10OnOffSensor",
}

var typesByName = func() map[string]Type {
	m := make(map[string]Type, typeCount)
	for t, name := range typeNames {
		m[name] = Type(t)
	}
	return m
}()

// AllTypes returns every known type except TypeUnknown.
func AllTypes() []Type {
	out := make([]Type, 0, typeCount-1)
	for t := TypeUnknown + 1; t < typeCount; t++ {
		out = append(out, t)
	}
	return out
}

// ParseType resolves a type by its name, e.g. "X10Dimmable".
func ParseType(name string) (Type, error) {
	t, ok := typesByName[name]
	if !ok {
		return TypeUnknown, fmt.Errorf("%w: %q", ErrInvalidType, name)
	}
	return t, nil
}

// String returns the type name.
func (t Type) String() string {
	if t < 0 || t >= typeCount {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// IsX10 reports whether t is one of the synthetic X10 types.
func (t Type) IsX10() bool {
	return t == TypeX10Dimmable || t == TypeX10OnOff || t == TypeX10OnOffSensor
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Group is a numbered sub-component of a device: a button, a load, a
// sensor channel. Numbering starts at 1 and may be sparse.
type Group struct {
	Number int    `json:"number"`
	Name   string `json:"name"`

	// Dimmable groups accept a step count.
	Dimmable bool `json:"dimmable,omitempty"`
	Steps    int  `json:"steps,omitempty"`

	// Value is the last level reported for the group (0-255).
	Value int `json:"value"`
}

// SetSteps sets the dim step count on a dimmable group.
func (g *Group) SetSteps(steps int) error {
	if !g.Dimmable {
		return fmt.Errorf("%w: group %d", ErrStepsUnsupported, g.Number)
	}
	g.Steps = steps
	return nil
}

// Device is one node of the Insteon (or X10) network.
type Device struct {
	Address Address `json:"address"`
	Type    Type    `json:"type"`

	// Product identity. Cat/Subcat classify the device; Firmware and
	// ProductKey are informational.
	Cat        int `json:"cat"`
	Subcat     int `json:"subcat"`
	Firmware   int `json:"firmware"`
	ProductKey int `json:"product_key"`

	Description string `json:"description,omitempty"`
	Model       string `json:"model,omitempty"`

	X10House string `json:"x10_house,omitempty"`
	X10Unit  int    `json:"x10_unit,omitempty"`

	// Groups are ordered by number.
	Groups []Group `json:"groups"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Identified reports whether the device type is known.
func (d *Device) Identified() bool {
	return d.Type != TypeUnknown
}

// Group returns the group with the given number.
func (d *Device) Group(number int) (*Group, error) {
	for i := range d.Groups {
		if d.Groups[i].Number == number {
			return &d.Groups[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s group %d", ErrGroupNotFound, d.Address, number)
}

// DeepCopy returns an independent copy of the device.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	if d.Groups != nil {
		cpy.Groups = make([]Group, len(d.Groups))
		copy(cpy.Groups, d.Groups)
	}
	return &cpy
}
