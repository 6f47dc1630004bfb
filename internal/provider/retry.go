package provider

import (
	"context"
	"time"

	apperrors "github.com/spec-kit/qr-attribution-service/pkg/util"
)

// RetryPolicy bounds retries around an external call. Only transient
// failures are retried; terminal rejections stop immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	CapDelay    time.Duration
}

// DefaultRetryPolicy matches the service defaults: 4 attempts,
// exponential backoff starting at 2s and capped at 20s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, BaseDelay: 2 * time.Second, CapDelay: 20 * time.Second}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 4
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 2 * time.Second
	}
	if p.CapDelay <= 0 {
		p.CapDelay = 20 * time.Second
	}
	return p
}

// Retry runs fn up to the policy's attempt budget, sleeping with
// exponential backoff between attempts. It returns the last error when
// the budget is exhausted or the error is not transient.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	policy = policy.normalized()

	var err error
	delay := policy.BaseDelay
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !apperrors.IsTransient(err) {
			return err
		}
		if attempt == policy.MaxAttempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > policy.CapDelay {
			delay = policy.CapDelay
		}
	}
	return err
}
