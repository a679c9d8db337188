package pipeline

import (
	"context"
	"errors"
	"math"
	"time"

	"market-pipeline/internal/model"
)

// RetryFunc is notified before every retry with the attempt about to run and
// the error that triggered it.
type RetryFunc func(attempt int, err error)

// Retry runs fn and re-runs it while it fails with a retryable error, at most
// cfg.MaxRetries extra times. The returned outcome carries the attempt count.
func Retry[T any](ctx context.Context, cfg model.RetryConfig, onRetry RetryFunc, fn func(context.Context) model.StageOutcome[T]) model.StageOutcome[T] {
	attempt := 1
	for {
		out := fn(ctx)
		out.Attempts = attempt
		if out.OK() || attempt > cfg.MaxRetries || !IsRetryable(out.Err) {
			return out
		}

		attempt++
		if onRetry != nil {
			onRetry(attempt, out.Err)
		}
		if err := sleepCtx(ctx, backoff(cfg, attempt-1)); err != nil {
			return out
		}
	}
}

// backoff is the delay before retry number n (1-based).
func backoff(cfg model.RetryConfig, n int) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	factor := cfg.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(factor, float64(n-1)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
