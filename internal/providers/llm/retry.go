package llm

import (
	"context"
	"time"

	"github.com/screenpilot/screenpilot/internal/utils"
)

// RetryPolicy bounds the retry loop around one LLM call. Connection-class
// failures back off from a higher base than ordinary retryable statuses.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	ConnBase    time.Duration
	Cap         time.Duration
}

var (
	// BatchPolicy covers per-batch elimination calls; losing one batch
	// degrades the result rather than aborting, so fewer attempts.
	BatchPolicy = RetryPolicy{MaxAttempts: 3, Base: 2 * time.Second, ConnBase: 5 * time.Second, Cap: 60 * time.Second}
	// FinalPolicy covers the final ranking call, the expensive
	// non-resumable step.
	FinalPolicy = RetryPolicy{MaxAttempts: 5, Base: 2 * time.Second, ConnBase: 5 * time.Second, Cap: 60 * time.Second}
)

type Sleeper func(time.Duration)

// Retryable reports whether an error is worth retrying and whether it is
// connection-class (reset/timeout) rather than an upstream status.
func Retryable(err error) (retry, conn bool) {
	switch {
	case utils.IsCode(err, utils.CodeRateLimited):
		return true, false
	case utils.IsCode(err, utils.CodeUpstream):
		switch utils.UpstreamStatus(err) {
		case 500, 502, 503:
			return true, false
		}
		return false, false
	case utils.IsCode(err, utils.CodeUnavailable), utils.IsCode(err, utils.CodeTimeout):
		return true, true
	}
	return false, false
}

// WithRetry runs fn under the policy. Backoff doubles per attempt from the
// applicable base, capped. A cancelled context stops immediately.
func WithRetry(ctx context.Context, policy RetryPolicy, sleep Sleeper, fn func(context.Context) (string, error)) (string, error) {
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", err
		}
		retry, connClass := Retryable(err)
		if !retry || attempt == policy.MaxAttempts-1 {
			return "", err
		}

		base := policy.Base
		if connClass {
			base = policy.ConnBase
		}
		delay := base << attempt
		if delay > policy.Cap {
			delay = policy.Cap
		}
		sleep(delay)
	}
	return "", lastErr
}
