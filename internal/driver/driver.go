// File: internal/driver/driver.go

// Package driver supervises one browser process exposing a remote-debugging
// endpoint: it spawns the process, discovers its debug targets over HTTP,
// and opens protocol channels to them. The Manager in this package adds
// crash detection and transparent respawn on top.
package driver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chromehand/internal/cdp"
	"github.com/xkilldash9x/chromehand/internal/config"
	"github.com/xkilldash9x/chromehand/internal/netutil"
	"github.com/xkilldash9x/chromehand/internal/process"
	"github.com/xkilldash9x/chromehand/internal/retry"
)

var (
	// ErrNoBrowser means no browser binary could be located.
	ErrNoBrowser = errors.New("no browser executable found")

	// ErrNoSuchTarget means the requested target index does not exist.
	ErrNoSuchTarget = errors.New("no such debug target")
)

// Target is one page/tab exposing a debugging websocket. Targets are
// discovered, never owned: the list is re-fetched whenever a channel is
// needed because target ids and socket URLs churn as tabs come and go.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// processHandle is the slice of process.Handle the driver relies on,
// abstracted so manager and readiness logic are testable without spawning
// real browsers.
type processHandle interface {
	PID() int
	IsAlive() bool
	Kill()
}

// spawnProcess is swappable in tests.
var spawnProcess = func(logger *zap.Logger, path string, args ...string) (processHandle, error) {
	return process.Spawn(logger, path, args...)
}

// Driver couples one owned browser process to its debug endpoint.
type Driver struct {
	proc         processHandle
	port         int
	discoveryURL string
	httpc        *http.Client
	cmdsPerSec   float64
	logger       *zap.Logger
}

// browserCandidates are probed in order when no explicit path is configured.
var browserCandidates = []string{
	"/usr/bin/chromium-browser",
	"/usr/bin/chromium",
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/snap/bin/chromium",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
}

func findBrowserBinary(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("%w: configured path %s: %v", ErrNoBrowser, configured, err)
		}
		return configured, nil
	}
	for _, candidate := range browserCandidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", ErrNoBrowser
}

// buildArgs assembles the browser command line for the configured port.
func buildArgs(cfg config.BrowserConfig) []string {
	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", cfg.Port),
		"--no-first-run",
		"--no-default-browser-check",
	}
	if cfg.NoSandbox {
		args = append(args, "--no-sandbox")
	}
	if cfg.Headless {
		args = append(args, "--headless=new", "--disable-gpu")
	}
	args = append(args, cfg.ExtraArgs...)
	// A blank tab guarantees at least one debug target exists.
	args = append(args, "about:blank")
	return args
}

// Spawn launches the browser bound to cfg.Port. When cfg.KillExisting is
// set, same-named browser processes are first killed best-effort, since two
// processes cannot share one debugging port. When cfg.WaitReady is set the
// call blocks until the browser answers discovery and evaluates a trivial
// script, proving it is interactively ready and not merely listening; a
// readiness failure kills the just-spawned process before returning.
func Spawn(ctx context.Context, cfg config.BrowserConfig, retryCfg config.RetryConfig, logger *zap.Logger) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("driver")

	path, err := findBrowserBinary(cfg.Path)
	if err != nil {
		return nil, err
	}

	if cfg.KillExisting {
		process.KillByName(log, filepath.Base(path))
	}

	proc, err := spawnProcess(log, path, buildArgs(cfg)...)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		proc:         proc,
		port:         cfg.Port,
		discoveryURL: fmt.Sprintf("http://127.0.0.1:%d/json", cfg.Port),
		httpc:        &http.Client{Timeout: 10 * time.Second},
		cmdsPerSec:   cfg.CommandsPerSecond,
		logger:       log.With(zap.Int("port", cfg.Port)),
	}

	if cfg.WaitReady {
		policy := retry.Policy{Attempts: retryCfg.ReadyAttempts, Delay: retryCfg.ReadyDelay}
		if err := d.waitReady(ctx, policy); err != nil {
			d.Kill()
			return nil, fmt.Errorf("browser did not become ready on port %d: %w", cfg.Port, err)
		}
	}

	d.logger.Info("browser spawned", zap.Int("pid", proc.PID()), zap.Bool("headless", cfg.Headless))
	return d, nil
}

// readinessRetryable treats every failure as transient during startup,
// except an abandoned context.
func readinessRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// waitReady polls in two phases: first until target discovery answers at
// all, then until a trivial script evaluates without a script error through
// a fresh channel. The second phase matters because the browser accepts
// websocket connections well before its pages can run JavaScript.
func (d *Driver) waitReady(ctx context.Context, policy retry.Policy) error {
	waiter := retry.NewWaiter(policy, d.logger)

	_, err := retry.UntilNoError(ctx, waiter, readinessRetryable,
		func(ctx context.Context) ([]Target, error) {
			return d.ListTargets(ctx)
		})
	if err != nil {
		return fmt.Errorf("discovery endpoint: %w", err)
	}

	_, err = retry.UntilNoError(ctx, waiter, readinessRetryable,
		func(ctx context.Context) (any, error) {
			ch, err := d.OpenChannel(ctx, 0)
			if err != nil {
				return nil, err
			}
			defer ch.Close()
			return ch.EvalValue(ctx, "document.body.innerText;")
		})
	if err != nil {
		return fmt.Errorf("script readiness probe: %w", err)
	}
	return nil
}

// Port returns the fixed remote-debugging port this driver owns.
func (d *Driver) Port() int { return d.port }

// PID returns the browser process id.
func (d *Driver) PID() int { return d.proc.PID() }

// ListTargets fetches the current debug target list from the discovery
// endpoint. The result is ephemeral; do not cache it.
func (d *Driver) ListTargets(ctx context.Context) ([]Target, error) {
	var targets []Target
	if err := netutil.GetJSON(ctx, d.httpc, d.discoveryURL, &targets); err != nil {
		return nil, fmt.Errorf("%w: %v", cdp.ErrConnect, err)
	}
	return targets, nil
}

// OpenChannel resolves the target at index and opens a debug channel to it.
func (d *Driver) OpenChannel(ctx context.Context, index int) (*cdp.Channel, error) {
	targets, err := d.ListTargets(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(targets) {
		return nil, fmt.Errorf("%w: index %d, %d targets available", ErrNoSuchTarget, index, len(targets))
	}

	var opts []cdp.DialOption
	if d.cmdsPerSec > 0 {
		opts = append(opts, cdp.WithThrottle(d.cmdsPerSec))
	}
	return cdp.Dial(ctx, targets[index].WebSocketDebuggerURL, d.logger, opts...)
}

// IsAlive reports whether the owned browser process is still running.
func (d *Driver) IsAlive() bool { return d.proc.IsAlive() }

// Kill forcefully terminates the owned browser process. Idempotent.
func (d *Driver) Kill() { d.proc.Kill() }
