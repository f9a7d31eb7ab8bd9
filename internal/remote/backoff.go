package remote

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// DefaultRetryBase is the delay unit of the linear read backoff.
const DefaultRetryBase = time.Second

// DefaultMaxRetries is the number of read attempts made by
// GetUserProfileWithRetry.
const DefaultMaxRetries = 3

// linearBackoff waits attempt × base after each failed attempt and stops
// after attempts tries in total.
func linearBackoff(base time.Duration, attempts int) retry.Backoff {
	var n int
	return retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		if n >= attempts {
			return 0, true
		}
		return time.Duration(n) * base, false
	})
}

// observeBackoff reports every delay handed out by next.
func observeBackoff(next retry.Backoff, observe func(time.Duration)) retry.Backoff {
	if observe == nil {
		return next
	}
	return retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := next.Next()
		if !stop {
			observe(d)
		}
		return d, stop
	})
}
