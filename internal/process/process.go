// File: internal/process/process.go

// Package process owns external OS processes spawned by the driver layer.
// It deliberately knows nothing about browsers or retries: it spawns, probes
// liveness and kills, and leaves all policy to its callers.
package process

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// Handle owns exactly one spawned process. Termination is confined to this
// handle: Kill only ever signals the PID we started, never a name match.
type Handle struct {
	cmd    *exec.Cmd
	logger *zap.Logger

	// done is closed by the reaper goroutine once the process has exited
	// and been waited on, which makes IsAlive a non-blocking probe.
	done     chan struct{}
	waitErr  error
	killOnce sync.Once
}

// Spawn starts the binary directly, not through a shell, so the resulting
// process can be signalled by PID without leaving orphaned shell children.
func Spawn(logger *zap.Logger, path string, args ...string) (*Handle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cmd := exec.Command(path, args...)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning %s: %w", path, err)
	}

	h := &Handle{
		cmd:    cmd,
		logger: logger.Named("process").With(zap.Int("pid", cmd.Process.Pid)),
		done:   make(chan struct{}),
	}
	h.logger.Debug("process spawned", zap.String("path", path), zap.Strings("args", args))

	// Reap the child as soon as it exits so it never lingers as a zombie
	// and IsAlive reflects reality instead of zombie state.
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
		h.logger.Debug("process exited", zap.Error(h.waitErr))
	}()

	return h, nil
}

// PID returns the OS process id of the spawned process.
func (h *Handle) PID() int { return h.cmd.Process.Pid }

// IsAlive reports whether the process is still running. It never blocks.
func (h *Handle) IsAlive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Kill terminates the process forcefully. It is idempotent: killing an
// already-dead handle is a no-op, not an error.
func (h *Handle) Kill() {
	h.killOnce.Do(func() {
		if !h.IsAlive() {
			return
		}
		if err := h.cmd.Process.Kill(); err != nil {
			// Lost the race against a natural exit; nothing to do.
			h.logger.Debug("kill failed", zap.Error(err))
			return
		}
		h.logger.Debug("process killed")
	})
}

// Wait blocks until the process has exited or ctx is cancelled. The returned
// error is the process's exit error (nil for a clean exit), or ctx.Err().
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.waitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runKiller is swappable in tests so KillByName never touches real processes.
var runKiller = func(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// KillByName force-kills every process whose name matches exactly. It is a
// best-effort extra cleanup step and inherently racy: it can miss processes
// or hit unrelated ones sharing the binary name. The owned Handle.Kill is
// always the primary termination mechanism; failures here are logged at
// debug level and otherwise ignored.
func KillByName(logger *zap.Logger, name string) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var err error
	if runtime.GOOS == "windows" {
		err = runKiller("taskkill", "/F", "/IM", name)
	} else {
		err = runKiller("pkill", "-KILL", "-x", name)
	}
	if err != nil {
		// pkill exits 1 when nothing matched, which is the common case.
		logger.Debug("best-effort kill by name finished with error",
			zap.String("name", name), zap.Error(err))
	}
}
