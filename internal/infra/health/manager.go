// Package health owns the connection to the backing store. Every other
// component reaches the store through Manager.Do.
package health

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"bloodbank-ops/internal/pkg/config"
	"bloodbank-ops/internal/pkg/errs"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Dialer is implemented by the store drivers.
type Dialer interface {
	Connect(ctx context.Context, uri string) error
	Ping(ctx context.Context) error
	Close() error
}

type Observer interface {
	StoreHealthy(healthy bool)
	ReconnectAttempt(success bool)
}

type SleepFunc func(ctx context.Context, d time.Duration) error

type Option func(*Manager)

func WithSleep(fn SleepFunc) Option {
	return func(m *Manager) { m.sleep = fn }
}

func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithFatalHandler is called once when the retry budget is exhausted.
func WithFatalHandler(fn func(error)) Option {
	return func(m *Manager) { m.onFatal = fn }
}

type Manager struct {
	dialer   Dialer
	cfg      config.StoreConfig
	logger   *slog.Logger
	sleep    SleepFunc
	observer Observer
	onFatal  func(error)

	healthy atomic.Bool

	mu           sync.Mutex
	uri          string
	runCtx       context.Context
	cancel       context.CancelFunc
	started      bool
	closed       bool
	failed       bool
	reconnecting bool
	// attemptDone is closed after every connect attempt and then replaced.
	attemptDone chan struct{}

	fatalOnce      sync.Once
	wg             sync.WaitGroup
	unavailableLog rate.Sometimes
}

func NewManager(dialer Dialer, cfg config.StoreConfig, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		dialer:         dialer,
		cfg:            cfg,
		logger:         logger,
		sleep:          sleepCtx,
		attemptDone:    make(chan struct{}),
		unavailableLog: rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
	m.onFatal = func(err error) {
		m.logger.Error("store retry budget exhausted", "error", err)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) IsHealthy() bool {
	return m.healthy.Load()
}

// Connect dials the store, retrying with exponential backoff. When the retry
// budget is exhausted the fatal handler runs and the last error is returned.
// A successful connect starts the periodic health ping. After a failed
// connect the manager is back to its initial state and Connect may be
// called again.
func (m *Manager) Connect(ctx context.Context, uri string) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.failed = false
	m.uri = uri
	m.runCtx, m.cancel = context.WithCancel(context.Background())
	m.reconnecting = true
	m.mu.Unlock()

	if err := m.retryConnect(ctx); err != nil {
		m.mu.Lock()
		m.started = false
		m.reconnecting = false
		m.cancel()
		m.mu.Unlock()
		return err
	}

	m.logger.Info("store connected", "driver", m.cfg.Driver)
	m.wg.Add(1)
	go m.pingLoop()
	return nil
}

// Disconnect stops the ping and reconnect loops and closes the store. It is
// safe to call more than once.
func (m *Manager) Disconnect(_ context.Context) error {
	m.mu.Lock()
	if m.closed || !m.started {
		m.closed = true
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cancel()
	m.releaseWaitersLocked()
	m.mu.Unlock()

	m.wg.Wait()
	m.setHealthy(false)
	if err := m.dialer.Close(); err != nil {
		return errs.Wrap(err, "close store")
	}
	m.logger.Info("store disconnected")
	return nil
}

// Do runs op against the store. If the connection is down it waits for one
// reconnect attempt before failing with ErrStoreUnavailable. An op that fails
// with ErrStoreUnavailable marks the connection unhealthy and is retried once
// after the next reconnect attempt succeeds.
func (m *Manager) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if !m.IsHealthy() {
		if !m.awaitAttempt(ctx) {
			return m.unavailable(ctx.Err())
		}
	}

	err := op(ctx)
	if err == nil || !errs.IsRetryable(err) {
		return err
	}

	m.markUnhealthy(err)
	if !m.awaitAttempt(ctx) {
		return err
	}
	return op(ctx)
}

func (m *Manager) markUnhealthy(cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startReconnectLocked(cause)
}

func (m *Manager) startReconnectLocked(cause error) {
	if !m.started || m.closed || m.failed {
		return
	}
	m.setHealthy(false)
	m.unavailableLog.Do(func() {
		m.logger.Warn("store unavailable, reconnecting", "error", cause)
	})
	if m.reconnecting {
		return
	}
	m.reconnecting = true
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_ = m.retryConnect(m.runCtx)
	}()
}

// awaitAttempt blocks until the next connect attempt finishes and reports
// whether the store is healthy afterwards.
func (m *Manager) awaitAttempt(ctx context.Context) bool {
	m.mu.Lock()
	if m.IsHealthy() {
		m.mu.Unlock()
		return true
	}
	if m.closed || m.failed || !m.started {
		m.mu.Unlock()
		return false
	}
	if !m.reconnecting {
		m.startReconnectLocked(errs.New("store marked unhealthy"))
	}
	done := m.attemptDone
	m.mu.Unlock()

	select {
	case <-done:
		return m.IsHealthy()
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) retryConnect(ctx context.Context) error {
	policy := m.newBackOff()
	for {
		err := m.dialer.Connect(ctx, m.uri)

		m.mu.Lock()
		if err == nil {
			m.reconnecting = false
			m.setHealthy(true)
		}
		m.releaseWaitersLocked()
		m.mu.Unlock()

		if m.observer != nil {
			m.observer.ReconnectAttempt(err == nil)
		}
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			m.stopReconnecting()
			return m.unavailable(ctx.Err())
		}

		delay := policy.NextBackOff()
		if delay == backoff.Stop {
			err = errs.Mark(errs.Wrapf(err, "store unreachable after %d retries", m.cfg.MaxRetries), errs.ErrStoreUnavailable)
			m.fail(err)
			return err
		}
		m.logger.Warn("store connect failed", "error", err, "retry_in", delay)
		if sleepErr := m.sleep(ctx, delay); sleepErr != nil {
			m.stopReconnecting()
			return m.unavailable(sleepErr)
		}
	}
}

// newBackOff doubles from the base delay up to the cap, without jitter.
func (m *Manager) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.BackoffBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = m.cfg.BackoffMax
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(m.cfg.MaxRetries))
}

func (m *Manager) pingLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.runCtx.Done():
			return
		case <-ticker.C:
			if !m.IsHealthy() {
				continue
			}
			ctx, cancel := context.WithTimeout(m.runCtx, m.cfg.PingTimeout)
			err := m.dialer.Ping(ctx)
			cancel()
			if err != nil {
				m.markUnhealthy(err)
			}
		}
	}
}

func (m *Manager) fail(err error) {
	m.mu.Lock()
	m.failed = true
	m.reconnecting = false
	m.setHealthy(false)
	m.releaseWaitersLocked()
	m.mu.Unlock()
	m.fatalOnce.Do(func() { m.onFatal(err) })
}

func (m *Manager) stopReconnecting() {
	m.mu.Lock()
	m.reconnecting = false
	m.mu.Unlock()
}

func (m *Manager) releaseWaitersLocked() {
	close(m.attemptDone)
	m.attemptDone = make(chan struct{})
}

func (m *Manager) setHealthy(v bool) {
	if m.healthy.Swap(v) != v && m.observer != nil {
		m.observer.StoreHealthy(v)
	}
}

func (m *Manager) unavailable(cause error) error {
	if cause != nil {
		return errs.Mark(errs.Wrap(cause, "store unavailable"), errs.ErrStoreUnavailable)
	}
	return errs.Mark(errs.New("store unavailable"), errs.ErrStoreUnavailable)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
