// File: internal/retry/retry.go
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Default policy values, tuned for polling a local browser process.
const (
	DefaultAttempts = 3
	DefaultDelay    = 500 * time.Millisecond

	// maxDiagnosticLen caps the diagnostic carried by a retry outcome so a
	// huge page body or protocol payload never floods the logs.
	maxDiagnosticLen = 200
)

// Policy bounds a retried operation: at most Attempts probe invocations with
// Delay between consecutive attempts. It is immutable once handed to a Waiter.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultPolicy returns the policy used when the caller does not care.
func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, Delay: DefaultDelay}
}

// OutOfRetriesError is returned when every attempt asked for a retry and the
// budget ran out. It is terminal; callers that want more attempts must wrap
// the call in a wider policy, not inspect this error.
type OutOfRetriesError struct {
	Attempts int
}

func (e *OutOfRetriesError) Error() string {
	return fmt.Sprintf("action did not succeed after %d attempts", e.Attempts)
}

// outcomeKind tags the three possible results of a single probe attempt.
type outcomeKind int

const (
	kindSuccess outcomeKind = iota
	kindRetry
	kindFatal
)

// Outcome is the tagged result of one probe attempt. A probe returns exactly
// one of Success, Retry or Fatal; the zero value is a Success carrying the
// zero value of T.
type Outcome[T any] struct {
	kind       outcomeKind
	value      T
	diagnostic string
	err        error
}

// Success marks the attempt as done; v becomes the final result.
func Success[T any](v T) Outcome[T] {
	return Outcome[T]{kind: kindSuccess, value: v}
}

// Retry asks for another attempt. The diagnostic is logged, truncated, and
// never surfaced to the caller.
func Retry[T any](format string, args ...any) Outcome[T] {
	return Outcome[T]{kind: kindRetry, diagnostic: Truncate(fmt.Sprintf(format, args...))}
}

// Fatal aborts the whole wait immediately; err is returned to the caller
// as-is, without consuming further attempts.
func Fatal[T any](err error) Outcome[T] {
	return Outcome[T]{kind: kindFatal, err: err}
}

// Truncate caps s at the diagnostic length limit, rune-safe.
func Truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= maxDiagnosticLen {
		return s
	}
	return string(runes[:maxDiagnosticLen])
}

// Waiter repeatedly runs probes under a fixed Policy. It is purely
// sequential: one probe at a time, a blocking (context-aware) sleep between
// attempts, no internal timeout beyond Attempts*Delay plus probe latency.
type Waiter struct {
	policy Policy
	logger *zap.Logger
}

// NewWaiter builds a Waiter. A zero or negative Attempts is lifted to one so
// the probe always runs at least once; a nil logger is replaced by a no-op.
func NewWaiter(policy Policy, logger *zap.Logger) *Waiter {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if policy.Delay < 0 {
		policy.Delay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Waiter{policy: policy, logger: logger.Named("retry")}
}

// Policy returns the waiter's immutable policy.
func (w *Waiter) Policy() Policy { return w.policy }

// Until runs probe until it reports Success, reports Fatal, or the attempt
// budget is exhausted. The first Success wins and its value is returned.
// Fatal propagates immediately. Exhaustion returns *OutOfRetriesError.
// Cancelling ctx during the inter-attempt sleep aborts with ctx.Err().
func Until[T any](ctx context.Context, w *Waiter, probe func(context.Context) Outcome[T]) (T, error) {
	var zero T
	for attempt := 1; attempt <= w.policy.Attempts; attempt++ {
		out := probe(ctx)
		switch out.kind {
		case kindSuccess:
			return out.value, nil
		case kindFatal:
			return zero, out.err
		}

		w.logger.Debug("attempt asked for retry",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", w.policy.Attempts),
			zap.String("diagnostic", out.diagnostic))

		if attempt == w.policy.Attempts {
			break
		}
		select {
		case <-time.After(w.policy.Delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, &OutOfRetriesError{Attempts: w.policy.Attempts}
}

// UntilValue runs action until pred accepts its value. An error from action
// is fatal; a rejected value asks for a retry with the (truncated)
// stringified value as diagnostic.
func UntilValue[T any](ctx context.Context, w *Waiter, pred func(T) bool, action func(context.Context) (T, error)) (T, error) {
	return Until(ctx, w, func(ctx context.Context) Outcome[T] {
		v, err := action(ctx)
		if err != nil {
			return Fatal[T](err)
		}
		if pred(v) {
			return Success(v)
		}
		return Retry[T]("rejected value: %v", v)
	})
}

// UntilTrue runs action until it returns true. An error from action is fatal.
func UntilTrue(ctx context.Context, w *Waiter, action func(context.Context) (bool, error)) error {
	_, err := UntilValue(ctx, w, func(b bool) bool { return b }, action)
	return err
}

// UntilNoError runs action until it stops failing with a retryable error.
// Errors rejected by retryable propagate on first occurrence without
// consuming further attempts; a nil error ends the wait and returns the
// action's value.
func UntilNoError[T any](ctx context.Context, w *Waiter, retryable func(error) bool, action func(context.Context) (T, error)) (T, error) {
	return Until(ctx, w, func(ctx context.Context) Outcome[T] {
		v, err := action(ctx)
		if err == nil {
			return Success(v)
		}
		if retryable(err) {
			return Retry[T]("retryable error: %v", err)
		}
		return Fatal[T](err)
	})
}
