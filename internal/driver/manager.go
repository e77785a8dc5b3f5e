// File: internal/driver/manager.go
package driver

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chromehand/internal/config"
	"github.com/xkilldash9x/chromehand/internal/retry"
)

// spawnDriver is swappable in tests.
var spawnDriver = Spawn

// Action is a caller-supplied operation executed against a live driver.
// Actions must not assume browser session state survives between calls:
// a crash may silently substitute a brand-new process, so every action
// should start by establishing the state it needs (e.g. loading a URL).
type Action func(ctx context.Context, d *Driver) error

// Manager supervises at most one Driver bound to one fixed debugging port.
// The port is owned exclusively: a mutex serializes Do and Quit, so callers
// never race a driver that is concurrently being replaced. A Manager is
// created in the no-driver state and spawns lazily on first use.
type Manager struct {
	browserCfg config.BrowserConfig
	retryCfg   config.RetryConfig
	logger     *zap.Logger

	mu     sync.Mutex
	driver *Driver // nil in the no-driver state
}

// NewManager builds a Manager. Nothing is spawned until the first Do.
func NewManager(browserCfg config.BrowserConfig, retryCfg config.RetryConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		browserCfg: browserCfg,
		retryCfg:   retryCfg,
		logger:     logger.Named("manager").With(zap.Int("port", browserCfg.Port)),
	}
}

// Do runs fn against a live driver, spawning one first if none exists or
// the current one has died. An error escaping fn is treated as evidence the
// driver may be broken: the manager kills and drops it best-effort, then
// returns fn's error unchanged. When closeAfter is set the driver is also
// killed after a successful action.
func (m *Manager) Do(ctx context.Context, fn Action, closeAfter bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.getOrCreateLocked(ctx)
	if err != nil {
		return err
	}

	if err := fn(ctx, d); err != nil {
		m.logger.Warn("action failed, discarding driver", zap.Error(err))
		m.quitLocked()
		return err
	}

	if closeAfter {
		m.quitLocked()
	}
	return nil
}

// DoRetry is the crash-recovery loop around Do: failed actions are retried
// under the configured policy, each retry seeing a freshly spawned driver
// because Do discards a driver whose action failed. Context errors are not
// retried.
func (m *Manager) DoRetry(ctx context.Context, fn Action, closeAfter bool) error {
	waiter := retry.NewWaiter(retry.Policy{
		Attempts: m.retryCfg.DoAttempts,
		Delay:    m.retryCfg.DoDelay,
	}, m.logger)

	retryable := func(err error) bool {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	_, err := retry.UntilNoError(ctx, waiter, retryable,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, m.Do(ctx, fn, closeAfter)
		})
	return err
}

// DoValue runs a value-returning action through m.Do.
func DoValue[T any](ctx context.Context, m *Manager, fn func(ctx context.Context, d *Driver) (T, error), closeAfter bool) (T, error) {
	var out T
	err := m.Do(ctx, func(ctx context.Context, d *Driver) error {
		v, err := fn(ctx, d)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, closeAfter)
	return out, err
}

// DoValueRetry is DoValue with the crash-recovery retry loop.
func DoValueRetry[T any](ctx context.Context, m *Manager, fn func(ctx context.Context, d *Driver) (T, error), closeAfter bool) (T, error) {
	var out T
	err := m.DoRetry(ctx, func(ctx context.Context, d *Driver) error {
		v, err := fn(ctx, d)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, closeAfter)
	return out, err
}

// Quit kills the current driver, if any, and returns to the no-driver
// state. Idempotent: quitting an already-quit manager is a no-op.
func (m *Manager) Quit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quitLocked()
}

func (m *Manager) quitLocked() {
	if m.driver == nil {
		return
	}
	// Kill is idempotent and safe on an already-dead process, so no
	// liveness check: the stale handle is always released exactly once.
	m.driver.Kill()
	m.driver = nil
	m.logger.Debug("driver discarded")
}

// getOrCreateLocked is the crash-recovery seam: the current driver is
// reused only while it reports alive; a dead one is quit and replaced.
func (m *Manager) getOrCreateLocked(ctx context.Context) (*Driver, error) {
	if m.driver != nil && m.driver.IsAlive() {
		return m.driver, nil
	}
	if m.driver != nil {
		m.logger.Info("driver no longer alive, respawning")
	}
	m.quitLocked()

	d, err := spawnDriver(ctx, m.browserCfg, m.retryCfg, m.logger)
	if err != nil {
		return nil, err
	}
	m.driver = d
	return d, nil
}
