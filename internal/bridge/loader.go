package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/insteon-bridge/internal/device"
	"github.com/nerrad567/insteon-bridge/internal/modem"
	"github.com/nerrad567/insteon-bridge/internal/platform"
)

// Refresh defaults.
const (
	defaultRequestInterval = 250 * time.Millisecond
	defaultSendRetries     = 3
	defaultRetryBackoff    = 500 * time.Millisecond
	maxRetryBackoff        = 5 * time.Second

	// statusReplyTimeout bounds how long a direct ACK still counts as
	// the answer to a status request.
	statusReplyTimeout = 10 * time.Second
)

// StoreOpener opens the registry store kept in workdir.
type StoreOpener func(ctx context.Context, workdir string) (device.Store, error)

// SQLiteStoreOpener returns a StoreOpener backed by device.OpenStore.
func SQLiteStoreOpener(walMode bool, busyTimeout int) StoreOpener {
	return func(ctx context.Context, workdir string) (device.Store, error) {
		return device.OpenStore(ctx, workdir, walMode, busyTimeout)
	}
}

// RefreshOptions tunes the background refresh.
type RefreshOptions struct {
	// RequestInterval spaces out requests to keep the network quiet.
	RequestInterval time.Duration

	// SendRetries bounds the retries of one failed send.
	SendRetries uint64

	// RetryBackoff is the first retry delay; it grows exponentially.
	RetryBackoff time.Duration
}

func (o RefreshOptions) withDefaults() RefreshOptions {
	if o.RequestInterval < 0 {
		o.RequestInterval = 0
	} else if o.RequestInterval == 0 {
		o.RequestInterval = defaultRequestInterval
	}
	if o.SendRetries == 0 {
		o.SendRetries = defaultSendRetries
	}
	if o.RetryBackoff == 0 {
		o.RetryBackoff = defaultRetryBackoff
	}
	return o
}

// Loader moves the device registry between the store and memory, and
// refreshes it from the network.
type Loader struct {
	registry *device.Registry
	modem    Modem
	open     StoreOpener
	opts     RefreshOptions
	logger   Logger

	pendingMu sync.Mutex
	pending   map[device.Address]pendingStatus
	now       func() time.Time

	// restore adjusts the copy of a device written to the store.
	restore func(*device.Device)

	wg sync.WaitGroup
}

// NewLoader creates a Loader. A nil opener disables persistence.
func NewLoader(registry *device.Registry, m Modem, open StoreOpener, opts RefreshOptions, logger Logger) *Loader {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Loader{
		registry: registry,
		modem:    m,
		open:     open,
		opts:     opts.withDefaults(),
		logger:   logger,
		pending:  make(map[device.Address]pendingStatus),
		now:      time.Now,
	}
}

// Load replaces the registry content with the devices persisted in
// workdir. Identified devices without groups get their type's layout.
// X10 devices come from configuration only and are not loaded.
// With identifyUnknown set, every device of unknown type is sent an ID
// request.
func (l *Loader) Load(ctx context.Context, workdir string, identifyUnknown bool) error {
	if l.open != nil {
		store, err := l.open(ctx, workdir)
		if err != nil {
			return fmt.Errorf("loading devices: %w", err)
		}
		devices, err := store.Load(ctx)
		store.Close() //nolint:errcheck // Read-only use
		if err != nil {
			return fmt.Errorf("loading devices: %w", err)
		}

		kept := devices[:0]
		for _, d := range devices {
			if d.Address.IsX10() {
				continue
			}
			if d.Identified() && len(d.Groups) == 0 {
				platform.ApplyLayout(d)
			}
			kept = append(kept, d)
		}
		l.registry.Replace(kept)
	}

	if identifyUnknown {
		l.identifyUnknown(ctx)
	}
	return nil
}

// Save writes the Insteon devices of the registry to the store in
// workdir.
func (l *Loader) Save(ctx context.Context, workdir string) error {
	if l.open == nil {
		return nil
	}
	store, err := l.open(ctx, workdir)
	if err != nil {
		return fmt.Errorf("saving devices: %w", err)
	}
	defer store.Close()

	devices := make([]*device.Device, 0, l.registry.Count())
	for _, d := range l.registry.List() {
		if d.Address.IsX10() {
			continue
		}
		if l.restore != nil {
			l.restore(d)
		}
		devices = append(devices, d)
	}
	if err := store.Save(ctx, devices); err != nil {
		return fmt.Errorf("saving devices: %w", err)
	}
	l.logger.Info("device registry saved", "count", len(devices), "workdir", workdir)
	return nil
}

// RefreshInBackground starts the status, identify and save pass in a
// detached goroutine and returns at once. Failures are logged only.
func (l *Loader) RefreshInBackground(ctx context.Context, workdir string) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.refresh(ctx, workdir)
	}()
}

// Wait blocks until every background refresh has finished.
func (l *Loader) Wait() {
	l.wg.Wait()
}

func (l *Loader) refresh(ctx context.Context, workdir string) {
	start := time.Now()
	l.logger.Info("refreshing device status", "devices", l.registry.Count())

	l.requestStatus(ctx)
	l.identifyUnknown(ctx)

	// Save even when cancelled so identities learned so far survive.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := l.Save(saveCtx, workdir); err != nil {
		l.logger.Error("saving device registry failed", "error", err)
	}

	l.logger.Info("device refresh complete", "duration", time.Since(start).String())
}

func (l *Loader) requestStatus(ctx context.Context) {
	for _, d := range l.registry.List() {
		if d.Address.IsX10() {
			continue
		}
		to, err := d.Address.Bytes()
		if err != nil {
			continue
		}

		l.expectStatus(d.Address, 1)
		if err := l.send(ctx, modem.StatusRequest(to)); err != nil {
			l.ConsumeStatus(d.Address)
			if l.stopOnError(err) {
				l.logger.Warn("status refresh stopped", "error", err)
				return
			}
			l.logger.Warn("status request failed", "address", d.Address, "error", err)
		}

		if !l.pause(ctx) {
			return
		}
	}
}

func (l *Loader) identifyUnknown(ctx context.Context) {
	unknown := l.registry.Unidentified()
	if len(unknown) == 0 {
		return
	}
	l.logger.Info("identifying devices", "count", len(unknown))

	for _, addr := range unknown {
		to, err := addr.Bytes()
		if err != nil {
			continue
		}
		// The request is acknowledged with a direct ACK that must not be
		// taken for a status reply.
		l.ConsumeStatus(addr)
		if err := l.send(ctx, modem.IDRequest(to)); err != nil {
			if l.stopOnError(err) {
				l.logger.Warn("identification stopped", "error", err)
				return
			}
			l.logger.Warn("ID request failed", "address", addr, "error", err)
		}
		if !l.pause(ctx) {
			return
		}
	}
}

// send writes msg, retrying transient failures with exponential backoff.
func (l *Loader) send(ctx context.Context, msg modem.Message) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = l.opts.RetryBackoff
	bo.MaxInterval = maxRetryBackoff
	bo.MaxElapsedTime = 0

	op := func() error {
		err := l.modem.Send(ctx, msg)
		if errors.Is(err, modem.ErrNotConnected) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		l.logger.Debug("retrying send", "message", msg.String(), "error", err, "wait", wait.String())
	}

	return backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(bo, l.opts.SendRetries), ctx), notify)
}

func (l *Loader) stopOnError(err error) bool {
	return errors.Is(err, modem.ErrNotConnected) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (l *Loader) pause(ctx context.Context) bool {
	if l.opts.RequestInterval == 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(l.opts.RequestInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// pendingStatus is a status request awaiting its direct ACK.
type pendingStatus struct {
	group    int
	deadline time.Time
}

func (l *Loader) expectStatus(addr device.Address, group int) {
	l.pendingMu.Lock()
	l.pending[addr] = pendingStatus{group: group, deadline: l.now().Add(statusReplyTimeout)}
	l.pendingMu.Unlock()
}

// ConsumeStatus returns the group of the status request to addr still
// awaiting its reply, and clears it. Requests older than
// statusReplyTimeout are dropped unanswered.
func (l *Loader) ConsumeStatus(addr device.Address) (group int, ok bool) {
	l.pendingMu.Lock()
	defer l.pendingMu.Unlock()
	p, ok := l.pending[addr]
	delete(l.pending, addr)
	if !ok || !l.now().Before(p.deadline) {
		return 0, false
	}
	return p.group, true
}
