package usecase

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Faik442/dotnetblueprints/internal/repository"
)

// RetryPolicy bounds how often an idempotent read is re-attempted after a
// transient store failure.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy is three attempts starting at 50ms.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Backoff: 50 * time.Millisecond}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.Backoff
	exp.MaxInterval = 10 * p.Backoff
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

// retryRead runs fn until it succeeds, returns a non-transient error, the
// attempts run out or ctx ends. Writes never go through here.
func retryRead[T any](ctx context.Context, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	return backoff.RetryWithData(func() (T, error) {
		out, err := fn(ctx)
		if err != nil && !repository.IsTransient(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}, policy.backOff(ctx))
}
