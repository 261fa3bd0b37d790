package errors

import (
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// New returns an error with the supplied message and a stack trace.
func New(text string) error {
	return errors.New(text)
}

// ErrorCollector aggregates errors reported from many goroutines.
type ErrorCollector struct {
	m      sync.Mutex
	errors []error
}

// Report adds an error to the collector. Nil errors are ignored.
func (ec *ErrorCollector) Report(e error) {
	if e == nil {
		return
	}

	ec.m.Lock()
	defer ec.m.Unlock()

	ec.errors = append(ec.errors, e)
}

// IsError returns true if any error has been reported.
func (ec *ErrorCollector) IsError() bool {
	ec.m.Lock()
	defer ec.m.Unlock()

	return len(ec.errors) > 0
}

// Errors returns a copy of the reported errors.
func (ec *ErrorCollector) Errors() []error {
	ec.m.Lock()
	defer ec.m.Unlock()

	errs := make([]error, len(ec.errors))
	copy(errs, ec.errors)
	return errs
}

// Err combines the reported errors into a single error, or returns nil if none were reported.
func (ec *ErrorCollector) Err() error {
	ec.m.Lock()
	defer ec.m.Unlock()

	var result *multierror.Error
	for _, e := range ec.errors {
		result = multierror.Append(result, e)
	}
	return result.ErrorOrNil()
}
