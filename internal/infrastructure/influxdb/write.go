package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementDeviceStatus = "insteon_status"
	measurementModem        = "insteon_modem"
)

// WriteDeviceStatus records the level reported for one group of a device.
//
//	client.WriteDeviceStatus("1a2b3c", 1, 255)
func (c *Client) WriteDeviceStatus(address string, group int, level int) {
	c.record(newStatusPoint(address, group, level, time.Now()))
}

// WriteModemState records a modem connection state transition.
func (c *Client) WriteModemState(state string, connected bool) {
	c.record(newModemPoint(state, connected, time.Now()))
}

func newStatusPoint(address string, group int, level int, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementDeviceStatus,
		map[string]string{
			"address": address,
			"group":   strconv.Itoa(group),
		},
		map[string]any{
			"level": level,
			"on":    level > 0,
		},
		ts,
	)
}

func newModemPoint(state string, connected bool, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementModem,
		map[string]string{"state": state},
		map[string]any{"connected": connected},
		ts,
	)
}
