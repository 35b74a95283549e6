package apierr

import (
	"math/rand"
	"time"
)

// MaxRetryDelay caps any computed backoff delay.
const MaxRetryDelay = 30 * time.Second

// Backoff computes exponential retry delays with bounded jitter.
// The random source is injectable so tests can fix the seed.
type Backoff struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter float64        // max jitter fraction added to the delay
	Rand   func() float64 // returns [0,1); defaults to math/rand
}

// DefaultBackoff matches the pipeline defaults: 1s base, 10% jitter, 30s cap.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Cap: MaxRetryDelay, Jitter: 0.1}
}

// Delay returns the delay before the given attempt (1-indexed):
// base * 2^(attempt-1) plus up to Jitter fraction, clamped to Cap.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	cap := b.Cap
	if cap <= 0 {
		cap = MaxRetryDelay
	}
	rnd := b.Rand
	if rnd == nil {
		rnd = rand.Float64
	}

	delay := base << (attempt - 1)
	if delay <= 0 || delay > cap {
		// Shift overflow or past the cap either way.
		return cap
	}
	jittered := time.Duration(float64(delay) * (1 + b.Jitter*rnd()))
	if jittered > cap {
		return cap
	}
	return jittered
}

// RetryDelay returns the delay before the given attempt, honoring a
// server-specified RetryAfter over the computed backoff.
func (e *Error) RetryDelay(attempt int, b Backoff) time.Duration {
	if e.RetryAfter > 0 {
		return e.RetryAfter
	}
	return b.Delay(attempt)
}
