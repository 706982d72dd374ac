package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clipshelf/server/internal/repository"
	goretry "github.com/sethvargo/go-retry"
)

const retryBase = 5 * time.Millisecond

// Clock returns the current time. Services store UTC with microsecond
// precision so values round-trip through both SQLite and PostgreSQL.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// retryable reports whether an attempt failed for a reason that a fresh
// attempt may not hit again: a lost compare-and-swap, a busy database, or a
// collision on a freshly generated short url or token.
func retryable(err error) bool {
	return errors.Is(err, repository.ErrConflict) ||
		errors.Is(err, repository.ErrDuplicateShortURL) ||
		errors.Is(err, repository.ErrDuplicateToken) ||
		repository.IsTransient(err)
}

// retry runs fn up to attempts times with exponential backoff while it
// fails with a retryable error. Exhausting the attempts yields ErrTransient;
// a done context stops the backoff and returns the context's error.
func retry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	backoff := goretry.WithMaxRetries(uint64(attempts-1), goretry.NewExponential(retryBase))

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err != nil && retryable(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
	if err != nil && retryable(err) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}
