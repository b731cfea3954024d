package resilience

import (
	"math"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// ExponentialDelay returns the wait after the given attempt (starting at 1):
// min(maxWait, max(minWait, unit * 2^(attempt-1))).
func ExponentialDelay(attempt int, unit, minWait, maxWait time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(unit) * math.Pow(2, float64(attempt-1))
	if maxWait > 0 && d >= float64(maxWait) {
		return maxWait
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	delay := time.Duration(math.MaxInt64)
	if d < float64(math.MaxInt64) {
		delay = time.Duration(d)
	}
	if delay < minWait {
		delay = minWait
	}
	if maxWait > 0 && delay > maxWait {
		delay = maxWait
	}
	return delay
}

// newBoundedExponential builds a fresh go-retry backoff that allows
// maxAttempts-1 retries with ExponentialDelay waits.
func newBoundedExponential(maxAttempts int, unit, minWait, maxWait time.Duration) retry.Backoff {
	maxRetries := maxAttempts - 1
	if maxRetries < 0 {
		maxRetries = 0
	}

	var mu sync.Mutex
	attempt := 0
	next := retry.BackoffFunc(func() (time.Duration, bool) {
		mu.Lock()
		defer mu.Unlock()
		attempt++
		return ExponentialDelay(attempt, unit, minWait, maxWait), false
	})

	return retry.WithMaxRetries(uint64(maxRetries), next) // #nosec G115 - non-negative
}
