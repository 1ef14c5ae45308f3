package usecase

import (
	"math/rand/v2"
	"time"
)

const maxRetryShift = 16

// retryDelay computes the backoff before retry number attempt: exponential
// on the base with full jitter over the upper half, so colliding
// transactions decorrelate.
func retryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	} else if attempt > maxRetryShift {
		attempt = maxRetryShift
	}
	d := base << (attempt - 1)
	half := int64(d / 2)
	if half <= 0 {
		return d
	}
	return time.Duration(half + rand.Int64N(half+1))
}
