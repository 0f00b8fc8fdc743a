// Package retry holds the network retry policy shared by the snapshot
// fetcher and the live registry client: up to 3 attempts with exponential
// backoff for transient failures, no retry for permanent ones.
package retry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	maxAttempts  = 3
	baseInterval = 500 * time.Millisecond
)

// Do runs op, retrying transient errors with exponential backoff. The
// attempt budget is fixed; per-attempt wall-clock time is bounded by the
// HTTP client timeout, not here. Errors wrapped with Permanent stop the
// loop immediately.
func Do(ctx context.Context, op backoff.Operation) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseInterval
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, maxAttempts-1), ctx))
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// StatusError converts a non-2xx HTTP response into an error with the
// right retry class: 5xx is transient, everything else in 4xx space is
// permanent since retrying cannot help.
func StatusError(resp *http.Response) error {
	err := fmt.Errorf("unexpected status: %s", resp.Status)
	if resp.StatusCode >= 500 {
		return err
	}
	return Permanent(err)
}
