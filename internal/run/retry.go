package run

import (
	"context"
	"time"

	"github.com/metahub/mex-core/internal/source"
)

// RetryPolicy bounds per-activity retries. Mirrors the worker-side
// activity options so local and hosted runs behave the same.
type RetryPolicy struct {
	InitialInterval    time.Duration
	BackoffCoefficient float64
	MaximumAttempts    int
}

// DefaultRetryPolicy returns the standard activity retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumAttempts:    3,
	}
}

// Do runs op with exponential backoff up to MaximumAttempts. Timeouts
// and transient connectivity failures are retried; permission failures
// are deterministic, so the caller skips the scope instead of retrying.
func Do(ctx context.Context, p RetryPolicy, op func(ctx context.Context) error) error {
	if p.MaximumAttempts <= 0 {
		p.MaximumAttempts = 1
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = time.Second
	}
	if p.BackoffCoefficient < 1 {
		p.BackoffCoefficient = 2.0
	}

	interval := p.InitialInterval
	var err error
	for attempt := 1; attempt <= p.MaximumAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if !source.IsRetryable(err) || source.IsPermission(err) {
			return err
		}
		if attempt == p.MaximumAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		interval = time.Duration(float64(interval) * p.BackoffCoefficient)
	}
	return err
}
