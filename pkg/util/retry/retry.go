package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// RetryCancellationErr is the error returned if the retry is cancelled
var RetryCancellationErr = errors.New("RetryCancellationErr")

// IsRetryCancelledError returns true if the error was a cancellation
func IsRetryCancelledError(err error) bool {
	return errors.Is(err, RetryCancellationErr)
}

// Retry runs f until it returns a nil error, attempts are exhausted or ctx is done. The delay
// between attempts grows with a random jitter. The last error of f is returned when attempts
// are exhausted.
func Retry[T any](ctx context.Context, f func() (T, error), attempts uint, delay time.Duration) (T, error) {
	var zero T
	var err error

	d := delay
	for r := attempts; r > 0; r-- {
		if ctx.Err() != nil {
			return zero, RetryCancellationErr
		}

		var result T
		result, err = f()
		if err == nil {
			return result, nil
		}

		if r == 1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, RetryCancellationErr
		case <-time.After(d):
		}

		if d > 0 {
			jitter := time.Duration(rand.Int63n(int64(d))) // #nosec No need for a cryptographic strength random here
			d = d + jitter/2
		}
	}

	return zero, err
}
