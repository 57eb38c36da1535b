package device

import "errors"

// Domain errors for the device package.
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when an address is not in the registry.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidAddress is returned when an address string cannot be parsed.
	ErrInvalidAddress = errors.New("device: invalid address")

	// ErrInvalidType is returned when a type name is not recognised.
	ErrInvalidType = errors.New("device: invalid type")

	// ErrGroupNotFound is returned when a device has no such group.
	ErrGroupNotFound = errors.New("device: group not found")

	// ErrStepsUnsupported is returned when setting dim steps on a group
	// that is not dimmable.
	ErrStepsUnsupported = errors.New("device: group does not support steps")
)
