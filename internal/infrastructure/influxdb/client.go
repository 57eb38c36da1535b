package influxdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/insteon-bridge/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	fallbackBatchSize     = 100
	fallbackFlushInterval = 10 * time.Second
)

// pointWriter is the part of api.WriteAPI the client uses.
type pointWriter interface {
	WritePoint(p *write.Point)
	Flush()
}

// Client records device status and modem state as InfluxDB points.
// Points are batched and written in the background; a failed batch is
// reported to the SetOnError callback, never to the caller.
type Client struct {
	client influxdb2.Client
	points pointWriter

	open    atomic.Bool
	onError atomic.Pointer[func(error)]
}

// Connect pings the server at cfg.URL and starts the batching writer.
// It returns ErrDisabled when telemetry is switched off.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := ping(pingCtx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	writer := client.WriteAPI(cfg.Org, cfg.Bucket)
	c := newClient(writer)
	c.client = client

	go func() {
		for err := range writer.Errors() {
			if fn := c.onError.Load(); fn != nil {
				(*fn)(err)
			}
		}
	}()
	return c, nil
}

func newClient(points pointWriter) *Client {
	c := &Client{points: points}
	c.open.Store(true)
	return c
}

func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(fallbackBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := fallbackFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds()))
}

func ping(ctx context.Context, client influxdb2.Client) error {
	ok, err := client.Ping(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("ping: %w", err)
	case !ok:
		return fmt.Errorf("ping: server not ready")
	}
	return nil
}

// Close flushes buffered points and releases the client. Later writes
// are dropped.
func (c *Client) Close() error {
	if !c.open.Swap(false) {
		return nil
	}
	c.points.Flush()
	if c.client != nil {
		c.client.Close()
	}
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() || c.client == nil {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is open.
func (c *Client) IsConnected() bool { return c.open.Load() }

// SetOnError sets the callback for failed background writes.
func (c *Client) SetOnError(fn func(err error)) {
	if fn == nil {
		c.onError.Store(nil)
		return
	}
	c.onError.Store(&fn)
}

// Flush writes buffered points now.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.points.Flush()
	}
}

func (c *Client) record(p *write.Point) {
	if c.IsConnected() {
		c.points.WritePoint(p)
	}
}
