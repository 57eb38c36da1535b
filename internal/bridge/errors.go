package bridge

import "errors"

var (
	// ErrModemRequired is returned by New without a modem.
	ErrModemRequired = errors.New("bridge: modem is required")

	// ErrRegistryRequired is returned by New without a registry.
	ErrRegistryRequired = errors.New("bridge: registry is required")

	// ErrAlreadySetup is returned when Setup runs a second time.
	ErrAlreadySetup = errors.New("bridge: setup already ran")

	// ErrUnsupportedGroup is returned for commands to a group that cannot
	// be driven with a standard message.
	ErrUnsupportedGroup = errors.New("bridge: group not controllable")
)
