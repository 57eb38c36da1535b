package hass

import "errors"

var (
	// ErrInvalidCommand is returned for command topics or payloads that
	// cannot be parsed.
	ErrInvalidCommand = errors.New("hass: invalid command")

	// ErrUnsupportedPlatform is returned when no discovery config exists
	// for a category.
	ErrUnsupportedPlatform = errors.New("hass: unsupported platform")
)
