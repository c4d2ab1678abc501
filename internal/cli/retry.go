package cli

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/alexanderramin/cadence/internal/domain"
)

// withRetry runs op with exponential backoff for up to maxElapsed. Only
// persistence failures are retried; a failed use case commits nothing, so
// running it again is safe. A non-positive maxElapsed runs op once.
func withRetry(ctx context.Context, maxElapsed time.Duration, op func() error) error {
	if maxElapsed <= 0 {
		return op()
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = maxElapsed
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !errors.Is(err, domain.ErrPersistence) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}
