package allocator

import (
	"fmt"

	"github.com/pkg/errors"
)

// CancelledError is returned when the caller's context is done before the guard could be
// acquired. No shared state was modified when it is returned.
type CancelledError struct {
	Key string
	Err error
}

func (ce *CancelledError) Error() string {
	return fmt.Sprintf("allocation for key %q cancelled while waiting for guard: %s", ce.Key, ce.Err)
}

// Unwrap returns the context error, so errors.Is(err, context.Canceled) and
// errors.Is(err, context.DeadlineExceeded) behave as expected.
func (ce *CancelledError) Unwrap() error {
	return ce.Err
}

// IsCancelled returns true if err is, or wraps, a CancelledError.
func IsCancelled(err error) bool {
	var ce *CancelledError
	return errors.As(err, &ce)
}
