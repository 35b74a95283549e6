package apierr

import (
	"math/rand"
	"testing"
	"time"
)

func seededBackoff(seed int64) Backoff {
	r := rand.New(rand.NewSource(seed))
	return Backoff{Base: time.Second, Cap: MaxRetryDelay, Jitter: 0.1, Rand: r.Float64}
}

func TestBackoff_Monotonic(t *testing.T) {
	b := seededBackoff(42)

	prev := time.Duration(0)
	for attempt := 1; attempt <= 12; attempt++ {
		d := b.Delay(attempt)
		if d < prev {
			t.Errorf("attempt %d: delay %v < previous %v", attempt, d, prev)
		}
		prev = d
	}
}

func TestBackoff_Cap(t *testing.T) {
	b := seededBackoff(1)

	for attempt := 6; attempt <= 20; attempt++ {
		// 1s * 2^5 = 32s exceeds the 30s cap.
		if d := b.Delay(attempt); d != MaxRetryDelay {
			t.Errorf("attempt %d: delay %v, want constant cap %v", attempt, d, MaxRetryDelay)
		}
	}
}

func TestBackoff_ExponentialWithBoundedJitter(t *testing.T) {
	b := seededBackoff(7)

	for attempt := 1; attempt <= 4; attempt++ {
		base := time.Second << (attempt - 1)
		d := b.Delay(attempt)
		if d < base || d > base+base/10 {
			t.Errorf("attempt %d: delay %v outside [%v, %v]", attempt, d, base, base+base/10)
		}
	}
}

func TestBackoff_Deterministic(t *testing.T) {
	a := seededBackoff(99)
	b := seededBackoff(99)

	for attempt := 1; attempt <= 5; attempt++ {
		if a.Delay(attempt) != b.Delay(attempt) {
			t.Errorf("attempt %d: same seed must yield same delay", attempt)
		}
	}
}

func TestRetryDelay_RetryAfterOverride(t *testing.T) {
	e := New(CodeRateLimited, CategoryRateLimit, "throttled").WithRetryAfter(12 * time.Second)

	if d := e.RetryDelay(1, DefaultBackoff()); d != 12*time.Second {
		t.Errorf("RetryDelay = %v, want verbatim RetryAfter 12s", d)
	}

	plain := New(CodeServerError, CategoryServer, "boom")
	b := seededBackoff(3)
	want := seededBackoff(3).Delay(2)
	if d := plain.RetryDelay(2, b); d != want {
		t.Errorf("RetryDelay = %v, want computed backoff %v", d, want)
	}
}
