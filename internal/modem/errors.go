package modem

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailed indicates the modem could not be reached.
	ErrConnectionFailed = errors.New("modem: connection failed")

	// ErrNotConnected is returned when sending without an open session.
	ErrNotConnected = errors.New("modem: not connected")

	// ErrSendFailed indicates a write to the modem failed.
	ErrSendFailed = errors.New("modem: send failed")

	// ErrInvalidMessage is returned for frames that cannot be decoded.
	ErrInvalidMessage = errors.New("modem: invalid message")
)

// ConnectionError reports a failed connection attempt and the target it
// was made against. It matches ErrConnectionFailed with errors.Is.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("modem: connecting to %s: %v", e.Target, e.Err)
}

// Unwrap exposes both ErrConnectionFailed and the cause.
func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnectionFailed, e.Err}
}
