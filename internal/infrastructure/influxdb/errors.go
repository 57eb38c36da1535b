package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when telemetry is off. Callers
	// treat it as "no client", not as a failure.
	ErrDisabled = errors.New("influxdb: telemetry disabled")

	ErrConnectionFailed = errors.New("influxdb: cannot reach server")
	ErrNotConnected     = errors.New("influxdb: client closed")
)
