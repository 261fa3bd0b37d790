package poclog

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ValidationError is returned by Submit for a malformed Submission.
type ValidationError struct {
	Problems []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("invalid submission: %s", strings.Join(ve.Problems, "; "))
}

// IsValidationError returns true if err is, or wraps, a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
