package engerr

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryIfEligible runs fn, retrying with fibonacci backoff only while the
// returned error is retry-eligible under the taxonomy. Callers own retries;
// the worker and backends never call this themselves.
func RetryIfEligible(ctx context.Context, maxRetries uint64, base time.Duration, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(maxRetries, retry.NewFibonacci(base))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
