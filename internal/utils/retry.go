package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy 远程调用的重试策略：固定倍数指数退避，无抖动
type RetryPolicy struct {
	MaxAttempts  uint
	InitialDelay time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy makes at most 3 attempts, waiting 1s then 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second, Multiplier: 2}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	return p
}

func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          p.Multiplier,
		MaxInterval:         time.Hour,
	}
	b.Reset()
	return b
}

// Delays lists the waits between consecutive attempts.
func (p RetryPolicy) Delays() []time.Duration {
	p = p.normalized()
	b := p.newBackOff()
	delays := make([]time.Duration, 0, p.MaxAttempts-1)
	for i := uint(1); i < p.MaxAttempts; i++ {
		delays = append(delays, b.NextBackOff())
	}
	return delays
}

// Permanent marks an error that must not be retried.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry runs op until it succeeds or the policy is exhausted and returns the last error.
// onRetry, when set, is called before each wait.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error), onRetry func(err error, wait time.Duration)) (T, error) {
	policy = policy.normalized()
	opts := []backoff.RetryOption{
		backoff.WithBackOff(policy.newBackOff()),
		backoff.WithMaxTries(policy.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
	}
	if onRetry != nil {
		opts = append(opts, backoff.WithNotify(onRetry))
	}
	return backoff.Retry(ctx, func() (T, error) {
		return op(ctx)
	}, opts...)
}
