// File: internal/driver/driver_test.go
package driver

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/chromehand/internal/cdp/cdptest"
	"github.com/xkilldash9x/chromehand/internal/config"
	"github.com/xkilldash9x/chromehand/internal/retry"
)

// fakeProc stands in for a spawned browser process.
type fakeProc struct {
	mu    sync.Mutex
	alive bool
	kills int
}

func newFakeProc() *fakeProc { return &fakeProc{alive: true} }

func (p *fakeProc) PID() int { return 4242 }

func (p *fakeProc) IsAlive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *fakeProc) Kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kills++
	p.alive = false
}

func (p *fakeProc) die() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = false
}

func (p *fakeProc) killCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kills
}

// fakeDriver builds a Driver wired to the fake browser's discovery endpoint.
func fakeDriver(t *testing.T, fake *cdptest.Browser, proc processHandle) *Driver {
	t.Helper()
	return &Driver{
		proc:         proc,
		port:         config.DefaultDebugPort,
		discoveryURL: fake.URL() + "/json",
		logger:       zaptest.NewLogger(t),
	}
}

func existingFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-browser")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	return path
}

func TestFindBrowserBinary(t *testing.T) {
	t.Run("explicit existing path is used as-is", func(t *testing.T) {
		path := existingFile(t)
		got, err := findBrowserBinary(path)
		require.NoError(t, err)
		assert.Equal(t, path, got)
	})

	t.Run("explicit missing path is an error", func(t *testing.T) {
		_, err := findBrowserBinary(filepath.Join(t.TempDir(), "nope"))
		require.ErrorIs(t, err, ErrNoBrowser)
	})
}

func TestBuildArgs(t *testing.T) {
	cfg := config.BrowserConfig{
		Port:      9333,
		Headless:  true,
		NoSandbox: true,
		ExtraArgs: []string{"--mute-audio"},
	}
	args := buildArgs(cfg)

	assert.Contains(t, args, "--remote-debugging-port=9333")
	assert.Contains(t, args, "--headless=new")
	assert.Contains(t, args, "--no-sandbox")
	assert.Contains(t, args, "--mute-audio")
	assert.Equal(t, "about:blank", args[len(args)-1], "a blank tab must guarantee one debug target")

	headed := buildArgs(config.BrowserConfig{Port: 9333})
	assert.NotContains(t, headed, "--headless=new")
	assert.NotContains(t, headed, "--no-sandbox")
}

func TestListTargets(t *testing.T) {
	fake := cdptest.New(t)
	d := fakeDriver(t, fake, newFakeProc())

	targets, err := d.ListTargets(context.Background())
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "fake-target-1", targets[0].ID)
	assert.NotEmpty(t, targets[0].WebSocketDebuggerURL)
}

func TestOpenChannel(t *testing.T) {
	fake := cdptest.New(t)
	d := fakeDriver(t, fake, newFakeProc())
	ctx := context.Background()

	t.Run("opens a channel to the indexed target", func(t *testing.T) {
		fake.StubEval("1+1;", `{"type":"number","value":2}`)
		ch, err := d.OpenChannel(ctx, 0)
		require.NoError(t, err)
		defer ch.Close()

		v, err := ch.EvalValue(ctx, "1+1;")
		require.NoError(t, err)
		assert.Equal(t, float64(2), v)
	})

	t.Run("out-of-range index fails", func(t *testing.T) {
		_, err := d.OpenChannel(ctx, 5)
		require.ErrorIs(t, err, ErrNoSuchTarget)
		_, err = d.OpenChannel(ctx, -1)
		require.ErrorIs(t, err, ErrNoSuchTarget)
	})
}

func TestWaitReady_SucceedsOnceScriptable(t *testing.T) {
	fake := cdptest.New(t)
	d := fakeDriver(t, fake, newFakeProc())

	// First probe hits a page that cannot run scripts yet, second succeeds.
	fake.StubEval("document.body.innerText;", `{"type":"object","subtype":"error","description":"no body yet"}`)
	fake.StubEval("document.body.innerText;", `{"type":"string","value":"ready"}`)

	err := d.waitReady(context.Background(), retry.Policy{Attempts: 5, Delay: time.Millisecond})
	require.NoError(t, err)
}

func TestWaitReady_UnreachableEndpoint(t *testing.T) {
	d := &Driver{
		proc:         newFakeProc(),
		discoveryURL: "http://127.0.0.1:1/json",
		logger:       zaptest.NewLogger(t),
	}

	err := d.waitReady(context.Background(), retry.Policy{Attempts: 2, Delay: time.Millisecond})
	require.Error(t, err)
	var oor *retry.OutOfRetriesError
	assert.ErrorAs(t, err, &oor)
}

func TestSpawn(t *testing.T) {
	restore := func(t *testing.T) {
		orig := spawnProcess
		t.Cleanup(func() { spawnProcess = orig })
	}

	t.Run("missing binary fails before spawning anything", func(t *testing.T) {
		restore(t)
		spawned := false
		spawnProcess = func(*zap.Logger, string, ...string) (processHandle, error) {
			spawned = true
			return newFakeProc(), nil
		}

		cfg := config.BrowserConfig{Path: filepath.Join(t.TempDir(), "nope"), Port: 9222}
		_, err := Spawn(context.Background(), cfg, config.RetryConfig{}, zaptest.NewLogger(t))
		require.ErrorIs(t, err, ErrNoBrowser)
		assert.False(t, spawned)
	})

	t.Run("returns a live driver without readiness wait", func(t *testing.T) {
		restore(t)
		proc := newFakeProc()
		spawnProcess = func(_ *zap.Logger, _ string, args ...string) (processHandle, error) {
			assert.Contains(t, args, "--remote-debugging-port=9222")
			return proc, nil
		}

		cfg := config.BrowserConfig{Path: existingFile(t), Port: 9222}
		d, err := Spawn(context.Background(), cfg, config.RetryConfig{}, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.True(t, d.IsAlive())
		assert.Equal(t, 4242, d.PID())
		assert.Equal(t, 9222, d.Port())
	})

	t.Run("readiness failure kills the spawned process", func(t *testing.T) {
		restore(t)
		proc := newFakeProc()
		spawnProcess = func(*zap.Logger, string, ...string) (processHandle, error) {
			return proc, nil
		}

		// Port 1 is never a debugging endpoint, so readiness must fail.
		cfg := config.BrowserConfig{Path: existingFile(t), Port: 1, WaitReady: true}
		retryCfg := config.RetryConfig{ReadyAttempts: 2, ReadyDelay: time.Millisecond}
		_, err := Spawn(context.Background(), cfg, retryCfg, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Equal(t, 1, proc.killCount(), "a browser that never became ready must not be leaked")
	})
}
