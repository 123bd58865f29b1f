// Package retry provides a bounded retry-with-backoff primitive for
// collaborator calls that can fail transiently.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults for collaborator retries.
const (
	DefaultInitialInterval = 250 * time.Millisecond
	DefaultMaxAttempts     = 3
)

// Do runs op with exponential backoff until it succeeds, op returns a
// permanent error, maxAttempts calls have been made, or ctx is cancelled.
func Do(ctx context.Context, maxAttempts int, initial time.Duration, op func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if initial <= 0 {
		initial = DefaultInitialInterval
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxAttempts-1)), ctx)
	return backoff.Retry(op, policy)
}

// Permanent wraps err so Do stops retrying immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
