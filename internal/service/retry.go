package service

import (
	"context"
	"log"
	"time"

	"github.com/Wei-Shaw/tokengate/internal/pkg/errors"
)

// RetryPolicy reruns issuance attempts on retryable failures with exponential
// backoff: attempt n waits BaseDelay * 2^(n-1) before running. Whether a
// failure is retryable is decided solely by its classification; the policy
// never inspects transport details.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// Sleep waits for the backoff delay or until ctx is done. Nil means a
	// timer-based wait; tests inject their own to run instantly.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryPolicy(maxAttempts int, baseDelay time.Duration) *RetryPolicy {
	return &RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: baseDelay}
}

// Do runs op until it succeeds, fails terminally, or the attempt budget is
// spent. The returned error is always the last classified failure, except
// when the deadline expires mid-backoff, which reports a timeout.
func (p *RetryPolicy) Do(ctx context.Context, op func(context.Context) (*IssuedToken, error)) (*IssuedToken, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		token, err := op(ctx)
		if err == nil {
			return token, nil
		}
		lastErr = err

		if !errors.IsRetryable(err) {
			return nil, err
		}
		if attempt == attempts {
			break
		}

		delay := p.BaseDelay << (attempt - 1)
		log.Printf("[Retry] attempt %d/%d failed (%s), retrying in %s", attempt, attempts, errors.CodeOf(err), delay)
		if err := sleep(ctx, delay); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return nil, errors.Timeout("acquisition timed out during retry backoff").WithCause(lastErr)
			}
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
