package pipeline

import (
	"math/rand"
	"time"
)

// backoffExponentCap bounds the exponent so retry delays stop growing after
// a handful of attempts instead of racing toward hours.
const backoffExponentCap = 6

// defaultBaseRetryDelay applies when configuration hands us a non-positive
// base delay.
const defaultBaseRetryDelay = 5 * time.Second

// Backoff returns the delay before a job's next retry:
// base * 2^min(attempts, cap) plus a random jitter in [0, base) so workers
// don't re-claim a burst of failed jobs in lockstep.
func Backoff(base time.Duration, attempts int) time.Duration {
	if base <= 0 {
		base = defaultBaseRetryDelay
	}
	if attempts < 0 {
		attempts = 0
	}

	exp := attempts
	if exp > backoffExponentCap {
		exp = backoffExponentCap
	}

	delay := base * time.Duration(1<<exp)
	jitter := time.Duration(rand.Int63n(int64(base)))
	return delay + jitter
}
