package hal

import (
	"context"
	"math"
	"math/rand"
	"time"

	"mowercode-go/errcode"
)

// RetryPolicy is an immutable backoff description shared by every manager.
type RetryPolicy struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy suits short register transactions on a healthy bus.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:    3,
	BaseDelay:     50 * time.Millisecond,
	MaxDelay:      2 * time.Second,
	BackoffFactor: 2.0,
}

// Delay returns the sleep before retry number attempt (0-based):
// min(base*factor^attempt, max) plus uniform jitter in [0.1, 0.3] of that.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt))
	if ceil := float64(p.MaxDelay); base > ceil {
		base = ceil
	}
	jitter := base * (0.1 + 0.2*rand.Float64())
	return time.Duration(base + jitter)
}

// withRetry attempts op up to MaxRetries+1 times. Every attempt is recorded
// on health (success exactly once, each failure individually). The final
// failure is surfaced as errcode.Communication. Retries are never unbounded;
// context cancellation aborts between attempts.
func withRetry(ctx context.Context, p RetryPolicy, health *DeviceHealth, op func() error) error {
	var last error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := op(); err == nil {
			if health != nil {
				health.RecordSuccess()
			}
			return nil
		} else {
			last = err
			if health != nil {
				health.RecordFailure()
			}
		}
		if attempt == p.MaxRetries {
			break
		}
		t := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return errcode.Wrap(errcode.Communication, "retry", ctx.Err())
		case <-t.C:
		}
	}
	return errcode.Wrap(errcode.Communication, "retry", last)
}
