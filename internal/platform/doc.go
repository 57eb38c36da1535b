// Package platform maps Insteon device types to the platform categories
// they are exposed under and the groups each category covers.
//
// The mapping is a static table keyed by the concrete device type. A
// KeypadLinc dimmer, for example, is a light on group 1, switches on
// groups 2 to 6 and raises on/off events on groups 1 to 6:
//
//	platform.PlatformsFor(device.TypeDimmableLightingControlKeypadLinc6)
//	// [light on_off_events switch]
//	platform.GroupsFor(device.TypeDimmableLightingControlKeypadLinc6, platform.Switch)
//	// [2 3 4 5 6]
//
// A type with no entry exposes nothing.
package platform
