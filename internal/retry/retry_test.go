// File: internal/retry/retry_test.go
package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestWaiter(t *testing.T, attempts int, delay time.Duration) *Waiter {
	t.Helper()
	return NewWaiter(Policy{Attempts: attempts, Delay: delay}, zaptest.NewLogger(t))
}

func TestUntil_ExhaustsBudgetExactly(t *testing.T) {
	t.Parallel()
	const attempts = 5
	w := newTestWaiter(t, attempts, 0)

	calls := 0
	_, err := Until(context.Background(), w, func(context.Context) Outcome[int] {
		calls++
		return Retry[int]("not yet")
	})

	var oor *OutOfRetriesError
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, attempts, oor.Attempts)
	assert.Equal(t, attempts, calls, "an always-retrying probe must run exactly Attempts times")
}

func TestUntil_FirstSuccessWins(t *testing.T) {
	t.Parallel()
	w := newTestWaiter(t, 10, 0)

	calls := 0
	v, err := Until(context.Background(), w, func(context.Context) Outcome[string] {
		calls++
		if calls < 3 {
			return Retry[string]("warming up")
		}
		return Success("done")
	})

	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.Equal(t, 3, calls, "the loop must stop at the first success")
}

func TestUntil_FatalPropagatesImmediately(t *testing.T) {
	t.Parallel()
	w := newTestWaiter(t, 10, 0)
	boom := errors.New("boom")

	calls := 0
	_, err := Until(context.Background(), w, func(context.Context) Outcome[int] {
		calls++
		return Fatal[int](boom)
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "a fatal outcome must not consume further attempts")
}

func TestUntil_ContextCancelDuringSleep(t *testing.T) {
	t.Parallel()
	w := newTestWaiter(t, 100, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Until(ctx, w, func(context.Context) Outcome[int] {
			return Retry[int]("never")
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Until did not honor context cancellation during the sleep")
	}
}

func TestUntilValue(t *testing.T) {
	t.Parallel()

	t.Run("returns the value once the predicate accepts it", func(t *testing.T) {
		w := newTestWaiter(t, 10, 0)
		n := 0
		v, err := UntilValue(context.Background(), w,
			func(v int) bool { return v >= 3 },
			func(context.Context) (int, error) { n++; return n, nil })
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	})

	t.Run("action error is fatal", func(t *testing.T) {
		w := newTestWaiter(t, 10, 0)
		boom := errors.New("boom")
		calls := 0
		_, err := UntilValue(context.Background(), w,
			func(int) bool { return true },
			func(context.Context) (int, error) { calls++; return 0, boom })
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})
}

func TestUntilTrue_ImmediateTruthyValue(t *testing.T) {
	t.Parallel()
	w := newTestWaiter(t, 10, 0)

	calls := 0
	err := UntilTrue(context.Background(), w, func(context.Context) (bool, error) {
		calls++
		return true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls, "a truthy first result must finish in one invocation")
}

func TestUntilNoError(t *testing.T) {
	t.Parallel()
	retryableErr := errors.New("flaky")
	fatalErr := errors.New("broken")
	isFlaky := func(err error) bool { return errors.Is(err, retryableErr) }

	t.Run("retries only the retryable kind", func(t *testing.T) {
		w := newTestWaiter(t, 10, 0)
		calls := 0
		v, err := UntilNoError(context.Background(), w, isFlaky,
			func(context.Context) (string, error) {
				calls++
				if calls < 4 {
					return "", retryableErr
				}
				return "up", nil
			})
		require.NoError(t, err)
		assert.Equal(t, "up", v)
		assert.Equal(t, 4, calls)
	})

	t.Run("a different error kind propagates on first occurrence", func(t *testing.T) {
		w := newTestWaiter(t, 10, 0)
		calls := 0
		_, err := UntilNoError(context.Background(), w, isFlaky,
			func(context.Context) (string, error) {
				calls++
				return "", fatalErr
			})
		require.ErrorIs(t, err, fatalErr)
		assert.Equal(t, 1, calls)
	})

	t.Run("exhaustion surfaces OutOfRetriesError, not the retryable error", func(t *testing.T) {
		w := newTestWaiter(t, 3, 0)
		_, err := UntilNoError(context.Background(), w, isFlaky,
			func(context.Context) (string, error) { return "", retryableErr })
		var oor *OutOfRetriesError
		require.ErrorAs(t, err, &oor)
		assert.Equal(t, 3, oor.Attempts)
	})
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "short", Truncate("short"))

	long := strings.Repeat("x", 1000)
	got := Truncate(long)
	assert.Len(t, got, maxDiagnosticLen)

	// Rune-safe: a multi-byte string must not be cut mid-rune.
	wide := strings.Repeat("ねこ", 500)
	assert.Equal(t, maxDiagnosticLen, len([]rune(Truncate(wide))))
}

func TestNewWaiter_LiftsInvalidPolicy(t *testing.T) {
	t.Parallel()
	w := NewWaiter(Policy{Attempts: 0, Delay: -time.Second}, nil)
	assert.Equal(t, 1, w.Policy().Attempts)
	assert.Equal(t, time.Duration(0), w.Policy().Delay)
}
