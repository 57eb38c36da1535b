package modem

import (
	"context"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	hubPollInterval   = 500 * time.Millisecond
	hubRequestTimeout = 5 * time.Second

	// The buffer status holds 200 hex characters of data followed by two
	// hex characters giving the write position.
	hubBufferIndexLen = 2

	// A poll that keeps failing this many times ends the session.
	hubPollRetries   = 5
	hubRetryInterval = 250 * time.Millisecond
	hubMaxRetryWait  = 5 * time.Second
)

// hubHTTPConn adapts the Hub 2 HTTP command/buffer interface to a byte
// stream. Writes become "/3?<hex>=I=3" requests; reads poll
// /buffstatus.xml and clear the buffer after each non-empty read.
type hubHTTPConn struct {
	client   *http.Client
	base     string
	username string
	password string
	interval time.Duration
	retry    time.Duration

	mu      sync.Mutex
	pending []byte

	done *closeOnce
}

type hubBufferStatus struct {
	XMLName xml.Name `xml:"response"`
	Buffer  string   `xml:"BS"`
}

func dialHubHTTP(ctx context.Context, target HubTarget) (*hubHTTPConn, error) {
	c := newHubHTTPConn("http://"+target.String(), target.Username, target.Password, hubPollInterval)

	// One buffer fetch proves the host answers and the credentials work.
	if _, err := c.fetch(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func newHubHTTPConn(base, username, password string, interval time.Duration) *hubHTTPConn {
	return &hubHTTPConn{
		client:   &http.Client{Timeout: hubRequestTimeout},
		base:     strings.TrimSuffix(base, "/"),
		username: username,
		password: password,
		interval: interval,
		retry:    hubRetryInterval,
		done:     newCloseOnce(),
	}
}

func (c *hubHTTPConn) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &hubStatusError{Status: resp.Status, Code: resp.StatusCode, Path: path}
	}
	return body, nil
}

// fetch returns the bytes currently in the hub buffer.
func (c *hubHTTPConn) fetch(ctx context.Context) ([]byte, error) {
	body, err := c.get(ctx, "/buffstatus.xml")
	if err != nil {
		return nil, err
	}

	var status hubBufferStatus
	if err := xml.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("%w: buffer status: %w", ErrInvalidMessage, err)
	}
	return parseHubBuffer(strings.TrimSpace(status.Buffer))
}

func parseHubBuffer(raw string) ([]byte, error) {
	if len(raw) < hubBufferIndexLen {
		return nil, nil
	}
	pos, err := strconv.ParseUint(raw[len(raw)-hubBufferIndexLen:], 16, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: buffer index %q", ErrInvalidMessage, raw[len(raw)-hubBufferIndexLen:])
	}
	data := raw[:len(raw)-hubBufferIndexLen]
	if int(pos) > len(data) {
		pos = uint64(len(data))
	}
	data = data[:pos]
	if len(data)%2 == 1 {
		data = data[:len(data)-1]
	}

	out, err := hex.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: buffer data: %w", ErrInvalidMessage, err)
	}
	return out, nil
}

// hubStatusError is a non-200 answer from the hub.
type hubStatusError struct {
	Status string
	Code   int
	Path   string
}

func (e *hubStatusError) Error() string {
	return fmt.Sprintf("hub returned %s for %s", e.Status, e.Path)
}

// transient reports whether a later poll may succeed. Rejected
// credentials never recover.
func transient(err error) bool {
	var se *hubStatusError
	if errors.As(err, &se) {
		return se.Code != http.StatusUnauthorized && se.Code != http.StatusForbidden
	}
	return !errors.Is(err, ErrInvalidMessage)
}

func (c *hubHTTPConn) clear(ctx context.Context) error {
	_, err := c.get(ctx, "/1?XB=M=1")
	return err
}

// Read blocks until the hub buffer yields data or the conn is closed.
func (c *hubHTTPConn) Read(p []byte) (int, error) {
	for {
		c.mu.Lock()
		if len(c.pending) > 0 {
			n := copy(p, c.pending)
			c.pending = c.pending[n:]
			c.mu.Unlock()
			return n, nil
		}
		c.mu.Unlock()

		select {
		case <-c.done.Done():
			return 0, io.EOF
		default:
		}

		data, err := c.poll()
		if err != nil {
			if c.done.closed() {
				return 0, io.EOF
			}
			return 0, err
		}

		if len(data) > 0 {
			c.mu.Lock()
			c.pending = append(c.pending, data...)
			c.mu.Unlock()
			continue
		}

		select {
		case <-c.done.Done():
			return 0, io.EOF
		case <-time.After(c.interval):
		}
	}
}

// poll fetches and clears the hub buffer, retrying failed requests with
// exponential backoff. Close cancels the retries.
func (c *hubHTTPConn) poll() ([]byte, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.done.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retry
	bo.MaxInterval = hubMaxRetryWait
	bo.MaxElapsedTime = 0

	var data []byte
	op := func() error {
		reqCtx, reqCancel := context.WithTimeout(ctx, hubRequestTimeout)
		defer reqCancel()

		got, err := c.fetch(reqCtx)
		if err == nil && len(got) > 0 {
			err = c.clear(reqCtx)
		}
		if err != nil {
			if !transient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		data = got
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, hubPollRetries), ctx))
	return data, err
}

// Write sends one modem frame through the hub command interface.
func (c *hubHTTPConn) Write(p []byte) (int, error) {
	select {
	case <-c.done.Done():
		return 0, io.ErrClosedPipe
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), hubRequestTimeout)
	defer cancel()

	path := "/3?" + strings.ToUpper(hex.EncodeToString(p)) + "=I=3"
	if _, err := c.get(ctx, path); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close stops pending and future reads.
func (c *hubHTTPConn) Close() error {
	c.done.Close()
	c.client.CloseIdleConnections()
	return nil
}
