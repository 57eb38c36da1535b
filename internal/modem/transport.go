package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/tarm/serial"
)

// Hub versions.
const (
	HubVersion1 = 1
	HubVersion2 = 2
)

const (
	defaultBaud        = 19200
	serialReadTimeout  = 500 * time.Millisecond
	defaultDialTimeout = 10 * time.Second
)

// HubTarget describes a networked Insteon Hub.
type HubTarget struct {
	Host     string
	Port     int
	Username string
	Password string
	Version  int
}

// String returns host:port. Credentials are never included.
func (h HubTarget) String() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

// SerialTarget describes a PowerLinc Modem on a serial port.
type SerialTarget struct {
	Device string
	Baud   int
}

// Transport is an open byte stream to the modem. Close must unblock a
// pending Read.
type Transport = io.ReadWriteCloser

// HubDialer opens a session to a hub.
type HubDialer func(ctx context.Context, target HubTarget) (Transport, error)

// SerialOpener opens a serial modem.
type SerialOpener func(target SerialTarget) (Transport, error)

// DialHub is the default HubDialer. Version 1 hubs expose the modem on a
// raw TCP port; version 2 hubs only through their HTTP interface.
func DialHub(ctx context.Context, target HubTarget) (Transport, error) {
	if target.Version == HubVersion2 {
		return dialHubHTTP(ctx, target)
	}

	dialCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", target.String())
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return conn, nil
}

// OpenSerial is the default SerialOpener: 8N1 at the configured baud rate.
func OpenSerial(target SerialTarget) (Transport, error) {
	baud := target.Baud
	if baud == 0 {
		baud = defaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        target.Device,
		Baud:        baud,
		ReadTimeout: serialReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial: %w", err)
	}
	return serialPort{port}, nil
}

// serialPort turns the empty read of an expired read timeout into a
// plain (0, nil) so it is not mistaken for the end of the stream.
type serialPort struct {
	*serial.Port
}

func (p serialPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}
