package handling

import (
	"context"
	"time"

	"github.com/opsdesk/relay/internal/apierr"
)

// RetryPolicy bounds ExecuteWithRetry.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     apierr.Backoff
	// Retryable limits which categories are retried. Nil means the default
	// set: NETWORK, TIMEOUT, SERVER, EXTERNAL_SERVICE.
	Retryable []apierr.Category
}

// DefaultRetryPolicy returns 3 attempts with the default backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: apierr.DefaultBackoff()}
}

var defaultRetryable = []apierr.Category{
	apierr.CategoryNetwork,
	apierr.CategoryTimeout,
	apierr.CategoryServer,
	apierr.CategoryExternalService,
}

func (p RetryPolicy) retryable(c apierr.Category) bool {
	set := p.Retryable
	if set == nil {
		set = defaultRetryable
	}
	for _, rc := range set {
		if rc == c {
			return true
		}
	}
	return false
}

// ExecuteWithRetry runs op up to MaxAttempts times (attempts are 1-indexed).
// Each failure goes through Handle with feedback suppressed so intermediate
// attempts stay silent; recovery still runs, so a failing call can redirect
// or refresh credentials even mid-loop. The next attempt happens only while
// the normalized error is retryable, its category is in the policy set, and
// attempts remain. The delay between attempts
// honors a server-specified RetryAfter over the computed backoff, and the
// wait aborts when ctx is canceled. On exhaustion the last normalized error
// is returned; callers never see a bare native error.
func ExecuteWithRetry[T any](ctx context.Context, h *Handler, ectx Context, policy RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	var lastErr *apierr.Error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = h.Handle(ctx, err, ectx, WithoutFeedback())

		if attempt == policy.MaxAttempts || !lastErr.Retryable || !policy.retryable(lastErr.Category) {
			break
		}

		delay := lastErr.RetryDelay(attempt, policy.Backoff)
		select {
		case <-ctx.Done():
			return zero, h.Handle(ctx, ctx.Err(), ectx, WithoutFeedback())
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}
