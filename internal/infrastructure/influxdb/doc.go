// Package influxdb records Insteon device status as time-series data.
//
// Every status reply the bridge collects during its background refresh
// becomes an insteon_status point tagged by address and group. Modem
// connection transitions are written to insteon_modem.
//
// Telemetry is optional: Connect returns ErrDisabled when it is switched
// off in config, and callers carry on without it.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDeviceStatus("1a2b3c", 1, 255)
package influxdb
