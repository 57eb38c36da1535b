// Package modem manages the session with the Insteon modem.
//
// The modem is either a networked Insteon Hub or a PowerLinc Modem on a
// serial port. Exactly one is used: the hub whenever a hub host is
// configured. Version 1 hubs expose the modem byte stream on a TCP port;
// version 2 hubs are driven through their HTTP command and buffer pages.
//
// Only the standard-message subset of the modem protocol is carried: the
// bridge sends status and ID requests and observes ID broadcasts, group
// on/off broadcasts and direct acknowledgements. There is no retry or
// ACK/NAK state machine and no all-link database management.
//
//	m := modem.New(modem.Options{Serial: modem.SerialTarget{Device: "/dev/ttyUSB0"}})
//	if err := m.Connect(ctx); err != nil {
//	    // *modem.ConnectionError, errors.Is(err, modem.ErrConnectionFailed)
//	}
//	defer m.Disconnect()
package modem
