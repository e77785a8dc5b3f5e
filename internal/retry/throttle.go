// File: internal/retry/throttle.go
package retry

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttler caps the rate of repeated actions from a single goroutine, e.g.
// protocol commands fired in a tight polling loop. It is a thin wrapper over
// a token bucket with burst 1, so the first action passes immediately and
// subsequent ones are spaced at the configured rate.
type Throttler struct {
	limiter *rate.Limiter
}

// NewThrottler allows perSecond actions per second. A zero or negative rate
// disables throttling entirely.
func NewThrottler(perSecond float64) *Throttler {
	if perSecond <= 0 {
		return &Throttler{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttler{limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Wait blocks until the next action is allowed or ctx is cancelled.
func (t *Throttler) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
