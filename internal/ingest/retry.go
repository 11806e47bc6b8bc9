package ingest

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/soledexapp/soledex-server/internal/errors"
)

// retryPolicy retries transient failures with exponential backoff.
// Fatal and malformed-payload errors are returned to the caller on the
// first attempt; they do not get cheaper by repetition.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
}

// retryable reports whether an error is worth another attempt.
func retryable(err error) bool {
	return errors.Is(err, apperrors.ErrSourceTransient) ||
		errors.Is(err, apperrors.ErrStorageTransient)
}

// do runs op until it succeeds, fails permanently, or attempts run out.
// Context cancellation aborts between attempts and during backoff sleeps.
func (p retryPolicy) do(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt > 0 {
			delay := p.baseDelay << (attempt - 1)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err = op()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
	}
	return err
}
