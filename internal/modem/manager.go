package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

func (c *closeOnce) closed() bool {
	select {
	case <-c.ch:
		return true
	default:
		return false
	}
}

const (
	defaultWriteTimeout = 5 * time.Second
	readBufferSize      = 256

	// x10FrameGap spaces X10 frames; the powerline needs about half a
	// second per frame.
	x10FrameGap = 500 * time.Millisecond

	// callbackQueueSize is the buffer size for the message callback queue.
	callbackQueueSize = 100
)

// State is the connection state of the modem session.
type State int32

// Connection states.
const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateNotConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateNotConnected:
		return "not_connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Manager. When Hub.Host is set the hub is used and
// Serial is ignored.
type Options struct {
	Hub    HubTarget
	Serial SerialTarget

	// DialHub and OpenSerial default to DialHub and OpenSerial.
	DialHub    HubDialer
	OpenSerial SerialOpener

	Logger Logger

	// OnStateChange is called after every state transition.
	OnStateChange func(State)
}

// Stats holds operational counters.
type Stats struct {
	MessagesTx      uint64
	MessagesRx      uint64
	MessagesDropped uint64
	ErrorsTotal     uint64
	LastActivity    time.Time
	State           State
	Target          string
}

// Manager owns the single session with the modem.
//
// Connect and Disconnect each take effect at most once. Disconnect is
// safe to call when Connect failed or never ran. Received messages are
// delivered to the OnMessage callback from one worker goroutine, in
// arrival order.
type Manager struct {
	opts   Options
	logger Logger

	state atomic.Int32

	transport Transport
	writeMu   sync.Mutex

	connectOnce    sync.Once
	connectErr     error
	disconnectOnce sync.Once

	onMessage  func(Message)
	onX10      func(X10Message)
	callbackMu sync.RWMutex
	queue      chan received

	done *closeOnce
	wg   sync.WaitGroup

	messagesTx      atomic.Uint64
	messagesRx      atomic.Uint64
	messagesDropped atomic.Uint64
	errorsTotal     atomic.Uint64
	lastActivity    atomic.Int64
}

// New creates a Manager. Nothing is opened until Connect.
func New(opts Options) *Manager {
	if opts.DialHub == nil {
		opts.DialHub = DialHub
	}
	if opts.OpenSerial == nil {
		opts.OpenSerial = OpenSerial
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{
		opts:   opts,
		logger: logger,
		queue:  make(chan received, callbackQueueSize),
		done:   newCloseOnce(),
	}
}

// UseHub reports whether the hub path is configured.
func (m *Manager) UseHub() bool {
	return m.opts.Hub.Host != ""
}

// Target describes the configured modem without credentials.
func (m *Manager) Target() string {
	if m.UseHub() {
		return fmt.Sprintf("hub v%d %s", m.opts.Hub.Version, m.opts.Hub)
	}
	return "serial " + m.opts.Serial.Device
}

// State returns the current connection state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// IsConnected reports whether the session is open.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

func (m *Manager) setState(s State) {
	if State(m.state.Swap(int32(s))) == s {
		return
	}
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(s)
	}
}

// Connect opens the session to exactly one target: the hub when a hub
// host is configured, otherwise the serial device. On failure the state
// is StateNotConnected and the error is a *ConnectionError.
func (m *Manager) Connect(ctx context.Context) error {
	m.connectOnce.Do(func() {
		m.connectErr = m.connect(ctx)
	})
	return m.connectErr
}

func (m *Manager) connect(ctx context.Context) error {
	select {
	case <-m.done.Done():
		return &ConnectionError{Target: m.Target(), Err: errors.New("manager already disconnected")}
	default:
	}

	m.setState(StateConnecting)
	m.logger.Info("connecting to modem", "target", m.Target())

	var (
		t   Transport
		err error
	)
	if m.UseHub() {
		t, err = m.opts.DialHub(ctx, m.opts.Hub)
	} else {
		t, err = m.opts.OpenSerial(m.opts.Serial)
	}
	if err != nil {
		m.setState(StateNotConnected)
		return &ConnectionError{Target: m.Target(), Err: err}
	}

	m.writeMu.Lock()
	if m.isClosed() {
		m.writeMu.Unlock()
		t.Close() //nolint:errcheck // Disconnect raced the dial
		m.setState(StateNotConnected)
		return &ConnectionError{Target: m.Target(), Err: errors.New("disconnected while connecting")}
	}
	m.transport = t
	m.wg.Add(2)
	m.writeMu.Unlock()
	m.lastActivity.Store(time.Now().Unix())
	m.setState(StateConnected)

	go m.callbackWorker()
	go m.receiveLoop(t)

	m.logger.Info("modem connected", "target", m.Target())
	return nil
}

// Disconnect closes the session. Only the first call has an effect.
func (m *Manager) Disconnect() error {
	var err error
	m.disconnectOnce.Do(func() {
		m.done.Close()

		m.writeMu.Lock()
		t := m.transport
		m.writeMu.Unlock()

		if t != nil {
			err = t.Close()
		}
		m.wg.Wait()

		if t != nil {
			m.setState(StateDisconnected)
			m.logger.Info("modem disconnected", "target", m.Target())
		}
	})
	return err
}

// OnMessage sets the callback for received standard messages.
func (m *Manager) OnMessage(callback func(Message)) {
	m.callbackMu.Lock()
	m.onMessage = callback
	m.callbackMu.Unlock()
}

// OnX10 sets the callback for received X10 frames.
func (m *Manager) OnX10(callback func(X10Message)) {
	m.callbackMu.Lock()
	m.onX10 = callback
	m.callbackMu.Unlock()
}

// Send writes one standard message to the modem.
func (m *Manager) Send(ctx context.Context, msg Message) error {
	if err := m.write(ctx, msg.Encode()); err != nil {
		return err
	}
	m.logger.Debug("message sent", "message", msg.String())
	return nil
}

// SendX10 addresses unit on house, then sends each function in cmds.
// Frames are spaced so the powerline carries one at a time.
func (m *Manager) SendX10(ctx context.Context, house string, unit int, cmds ...byte) error {
	frames := make([]X10Message, 0, len(cmds)+1)
	addr, err := X10Unit(house, unit)
	if err != nil {
		return err
	}
	frames = append(frames, addr)
	for _, c := range cmds {
		f, err := X10Command(house, c)
		if err != nil {
			return err
		}
		frames = append(frames, f)
	}

	for i, f := range frames {
		if i > 0 {
			if err := sleepCtx(ctx, x10FrameGap); err != nil {
				return fmt.Errorf("%w: %w", ErrSendFailed, err)
			}
		}
		if err := m.write(ctx, f.Encode()); err != nil {
			return err
		}
		m.logger.Debug("x10 frame sent", "frame", f.String())
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *Manager) write(ctx context.Context, frame []byte) error {
	if !m.IsConnected() {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.transport == nil {
		return ErrNotConnected
	}

	if conn, ok := m.transport.(net.Conn); ok {
		deadline := time.Now().Add(defaultWriteTimeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("%w: set deadline: %w", ErrSendFailed, err)
		}
	}

	if _, err := m.transport.Write(frame); err != nil {
		m.errorsTotal.Add(1)
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	m.messagesTx.Add(1)
	m.lastActivity.Store(time.Now().Unix())
	return nil
}

// Stats returns current operational counters.
func (m *Manager) Stats() Stats {
	return Stats{
		MessagesTx:      m.messagesTx.Load(),
		MessagesRx:      m.messagesRx.Load(),
		MessagesDropped: m.messagesDropped.Load(),
		ErrorsTotal:     m.errorsTotal.Load(),
		LastActivity:    time.Unix(m.lastActivity.Load(), 0),
		State:           m.State(),
		Target:          m.Target(),
	}
}

func (m *Manager) isClosed() bool {
	select {
	case <-m.done.Done():
		return true
	default:
		return false
	}
}

// receiveLoop reads the transport until it fails or the manager closes.
// The session is not re-established after a failure.
func (m *Manager) receiveLoop(t Transport) {
	defer m.wg.Done()

	var dec Decoder
	buf := make([]byte, readBufferSize)

	for {
		n, err := t.Read(buf)
		if n > 0 {
			m.lastActivity.Store(time.Now().Unix())
			for _, msg := range dec.Feed(buf[:n]) {
				m.dispatch(received{std: msg})
			}
			for _, x := range dec.X10() {
				m.dispatch(received{x10: x, isX10: true})
			}
		}
		if err == nil {
			continue
		}

		if m.isClosed() {
			return
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			continue
		}

		m.errorsTotal.Add(1)
		if errors.Is(err, io.EOF) {
			m.logger.Warn("modem closed the connection", "target", m.Target())
		} else {
			m.logger.Error("modem read failed", "target", m.Target(), "error", err)
		}
		m.setState(StateNotConnected)
		return
	}
}

// received is one queued inbound frame.
type received struct {
	std   Message
	x10   X10Message
	isX10 bool
}

func (r received) String() string {
	if r.isX10 {
		return r.x10.String()
	}
	return r.std.String()
}

func (m *Manager) dispatch(r received) {
	m.messagesRx.Add(1)

	m.callbackMu.RLock()
	hasCallback := m.onMessage != nil || m.onX10 != nil
	m.callbackMu.RUnlock()
	if !hasCallback {
		return
	}

	select {
	case m.queue <- r:
	default:
		m.messagesDropped.Add(1)
		m.logger.Warn("callback queue full, dropping message", "message", r.String())
	}
}

func (m *Manager) callbackWorker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.done.Done():
			return
		case r := <-m.queue:
			m.callbackMu.RLock()
			onMessage, onX10 := m.onMessage, m.onX10
			m.callbackMu.RUnlock()

			func() {
				defer func() {
					if p := recover(); p != nil {
						m.errorsTotal.Add(1)
						m.logger.Error("message callback panic", "panic", p)
					}
				}()
				switch {
				case r.isX10 && onX10 != nil:
					onX10(r.x10)
				case !r.isX10 && onMessage != nil:
					onMessage(r.std)
				}
			}()
		}
	}
}
