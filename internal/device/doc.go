// Package device models the devices on an Insteon network.
//
// A Device has an Address, a concrete Type drawn from a closed set, the
// product identity reported by the device (category, subcategory,
// firmware, product key) and its numbered Groups. X10 devices share the
// model with a synthetic address.
//
// The Registry holds the devices known to the bridge and is safe for
// concurrent use. A Store persists it in the working directory between
// runs; SQLiteStore keeps it in insteon_devices.db.
//
// Product classification maps a (category, subcategory) pair to a Type:
//
//	t := device.ClassifyProduct(0x01, 0x2E) // TypeDimmableLightingControlFanLinc
package device
