package device

// Insteon device categories.
const (
	CatGeneralController    = 0x00
	CatDimmableLighting     = 0x01
	CatSwitchedLighting     = 0x02
	CatClimateControl       = 0x05
	CatSensorsActuators     = 0x07
	CatWindowCovering       = 0x0E
	CatSecurityHealthSafety = 0x10
)

// Product is one entry of the product database.
type Product struct {
	Cat    int
	Subcat int
	Type   Type
	Model  string
	Desc   string
}

type productKey struct{ cat, subcat int }

var products = map[productKey]Product{}

// categoryDefaults resolve a device whose subcategory is not listed.
var categoryDefaults = map[int]Type{
	CatDimmableLighting: TypeDimmableLightingControl,
	CatSwitchedLighting: TypeSwitchedLightingControl,
	CatClimateControl:   TypeClimateControlThermostat,
	CatWindowCovering:   TypeWindowCovering,
}

func init() {
	for _, p := range []Product{
		{0x00, 0x04, TypeGeneralControllerControlLinc, "2430", "ControlLinc"},
		{0x00, 0x05, TypeGeneralControllerRemoteLinc, "2440", "RemoteLinc"},
		{0x00, 0x10, TypeGeneralControllerMiniRemote4, "2444A2xx4", "Mini Remote - 4 Scene"},
		{0x00, 0x11, TypeGeneralControllerMiniRemoteSwitch, "2444A3", "Mini Remote - Switch"},
		{0x00, 0x12, TypeGeneralControllerMiniRemote8, "2444A2xx8", "Mini Remote - 8 Scene"},

		{0x01, 0x00, TypeDimmableLightingControlLampLinc, "2456D3", "LampLinc 3-Pin"},
		{0x01, 0x01, TypeDimmableLightingControlSwitchLinc, "2476D", "SwitchLinc Dimmer"},
		{0x01, 0x02, TypeDimmableLightingControlInLineLinc, "2475D", "In-LineLinc Dimmer"},
		{0x01, 0x06, TypeDimmableLightingControlLampLinc, "2456D2", "LampLinc 2-Pin"},
		{0x01, 0x09, TypeDimmableLightingControlKeypadLinc8, "2486D", "KeypadLinc Dimmer"},
		{0x01, 0x0C, TypeDimmableLightingControlKeypadLinc8, "2486DWH8", "KeypadLinc Dimmer 8 Button"},
		{0x01, 0x0E, TypeDimmableLightingControlLampLinc, "2457D2", "LampLinc Dual-Band"},
		{0x01, 0x1A, TypeDimmableLightingControlToggleLinc, "2466D", "ToggleLinc Dimmer"},
		{0x01, 0x1B, TypeDimmableLightingControlKeypadLinc6, "2486DWH6", "KeypadLinc Dimmer 6 Button"},
		{0x01, 0x1C, TypeDimmableLightingControlKeypadLinc8, "2486DWH8", "KeypadLinc Dimmer 8 Button"},
		{0x01, 0x20, TypeDimmableLightingControlSwitchLinc, "2477D", "SwitchLinc Dimmer Dual-Band"},
		{0x01, 0x2E, TypeDimmableLightingControlFanLinc, "2475F", "FanLinc"},
		{0x01, 0x32, TypeDimmableLightingControlInLineLinc, "2475DA1", "In-LineLinc Dimmer Dual-Band"},
		{0x01, 0x34, TypeDimmableLightingControlDinRail, "2452-222", "DIN Rail Dimmer"},
		{0x01, 0x39, TypeDimmableLightingControlOutletLinc, "2663-222", "On/Off Outlet Dimmer"},
		{0x01, 0x41, TypeDimmableLightingControlKeypadLinc8, "2334-2", "KeypadLinc Dimmer 8 Button Dual-Band"},
		{0x01, 0x42, TypeDimmableLightingControlKeypadLinc6, "2334-2", "KeypadLinc Dimmer 5 Button Dual-Band"},

		{0x02, 0x09, TypeSwitchedLightingControlApplianceLinc, "2456S3", "ApplianceLinc"},
		{0x02, 0x0A, TypeSwitchedLightingControlSwitchLinc, "2476S", "SwitchLinc Relay"},
		{0x02, 0x0F, TypeSwitchedLightingControlKeypadLinc6, "2486SWH6", "KeypadLinc On/Off 6 Button"},
		{0x02, 0x1A, TypeSwitchedLightingControlToggleLinc, "2466S", "ToggleLinc Relay"},
		{0x02, 0x1E, TypeSwitchedLightingControlKeypadLinc8, "2487S", "KeypadLinc On/Off 8 Button"},
		{0x02, 0x29, TypeSwitchedLightingControlSwitchLinc, "2477SA1", "SwitchLinc Relay Countdown"},
		{0x02, 0x2A, TypeSwitchedLightingControlSwitchLinc, "2477S", "SwitchLinc Relay Dual-Band"},
		{0x02, 0x2C, TypeSwitchedLightingControlKeypadLinc6, "2487S", "KeypadLinc On/Off Dual-Band"},
		{0x02, 0x2D, TypeSwitchedLightingControlInLineLinc, "2475SDB", "In-LineLinc Relay Dual-Band"},
		{0x02, 0x2F, TypeSwitchedLightingControlDinRail, "2453-222", "DIN Rail On/Off"},
		{0x02, 0x37, TypeSwitchedLightingControlOnOffOutlet, "2635-222", "On/Off Module"},
		{0x02, 0x38, TypeSwitchedLightingControlOutletLinc, "2634-222", "On/Off Outdoor Module"},
		{0x02, 0x39, TypeSwitchedLightingControlOnOffOutlet, "2663-222", "On/Off Outlet"},

		{0x05, 0x0B, TypeClimateControlThermostat, "2441TH", "Thermostat"},
		{0x05, 0x10, TypeClimateControlThermostat, "2732-422", "Thermostat"},

		{0x07, 0x00, TypeSensorsActuatorsIOLink, "2450", "I/OLinc"},

		{0x0E, 0x00, TypeWindowCovering, "318276I", "Somfy Drape Controller RF Bridge"},
		{0x0E, 0x01, TypeWindowCovering, "2772-222", "Micro Open/Close"},

		{0x10, 0x01, TypeSecurityHealthSafetyMotionSensor, "2842-222", "Motion Sensor"},
		{0x10, 0x02, TypeSecurityHealthSafetyOpenCloseSensor, "2421", "TriggerLinc"},
		{0x10, 0x08, TypeSecurityHealthSafetyLeakSensor, "2852-222", "Leak Sensor"},
		{0x10, 0x09, TypeSecurityHealthSafetyOpenCloseSensor, "2843-222", "Open/Close Sensor"},
		{0x10, 0x0A, TypeSecurityHealthSafetySmokebridge, "2982-222", "Smoke Bridge"},
		{0x10, 0x11, TypeSecurityHealthSafetyDoorSensor, "2845-222", "Hidden Door Sensor"},
		{0x10, 0x16, TypeSecurityHealthSafetyMotionSensor, "2844-222", "Motion Sensor II"},
	} {
		products[productKey{p.Cat, p.Subcat}] = p
	}
}

// LookupProduct resolves a product from its category and subcategory.
// Unlisted subcategories of the lighting, climate and window covering
// categories fall back to the category's generic type with no model.
// ok is false when neither matches.
func LookupProduct(cat, subcat int) (p Product, ok bool) {
	if p, ok := products[productKey{cat, subcat}]; ok {
		return p, true
	}
	if t, ok := categoryDefaults[cat]; ok {
		return Product{Cat: cat, Subcat: subcat, Type: t}, true
	}
	return Product{Cat: cat, Subcat: subcat, Type: TypeUnknown}, false
}

// ClassifyProduct returns the device type for a category/subcategory pair.
func ClassifyProduct(cat, subcat int) Type {
	p, _ := LookupProduct(cat, subcat)
	return p.Type
}
