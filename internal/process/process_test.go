// File: internal/process/process_test.go
package process

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// sleepBinary locates a long-running helper binary for lifecycle tests.
func sleepBinary(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("no sleep binary available on this system")
	}
	return path
}

func TestSpawn_LifecycleAndKill(t *testing.T) {
	t.Parallel()
	logger := zaptest.NewLogger(t)

	h, err := Spawn(logger, sleepBinary(t), "300")
	require.NoError(t, err)
	t.Cleanup(h.Kill)

	assert.Greater(t, h.PID(), 0)
	assert.True(t, h.IsAlive(), "a freshly spawned process must report alive")

	h.Kill()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = h.Wait(ctx) // a killed process exits with a non-nil wait error
	assert.False(t, h.IsAlive(), "a killed process must report dead once reaped")
}

func TestKill_IsIdempotent(t *testing.T) {
	t.Parallel()
	h, err := Spawn(zaptest.NewLogger(t), sleepBinary(t), "300")
	require.NoError(t, err)

	h.Kill()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = h.Wait(ctx)

	// Killing an already-dead handle must be a no-op, not a panic or error.
	assert.NotPanics(t, h.Kill)
	assert.NotPanics(t, h.Kill)
}

func TestSpawn_MissingBinary(t *testing.T) {
	t.Parallel()
	_, err := Spawn(zaptest.NewLogger(t), "/nonexistent/definitely-not-a-browser")
	require.Error(t, err)
}

func TestWait_ReturnsOnNaturalExit(t *testing.T) {
	t.Parallel()
	truePath, err := exec.LookPath("true")
	if err != nil {
		t.Skip("no true binary available on this system")
	}

	h, err := Spawn(zaptest.NewLogger(t), truePath)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	assert.NoError(t, h.Wait(ctx), "a clean exit must report a nil wait error")
	assert.False(t, h.IsAlive())
}

func TestKillByName_BestEffort(t *testing.T) {
	var gotName string
	var gotArgs []string
	orig := runKiller
	runKiller = func(name string, args ...string) error {
		gotName = name
		gotArgs = args
		return nil
	}
	t.Cleanup(func() { runKiller = orig })

	KillByName(zaptest.NewLogger(t), "chromium-browser")

	require.NotEmpty(t, gotName)
	assert.Contains(t, gotArgs, "chromium-browser")
}
