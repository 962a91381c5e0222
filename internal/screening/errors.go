package screening

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the application or its result does not exist
	ErrNotFound = errors.New("not found")
	// ErrCannotCancel is returned when cancelling a result that is not
	// PENDING or PROCESSING
	ErrCannotCancel = errors.New("screening cannot be cancelled in its current state")
	// ErrNotRetryable is returned when retrying a result that is not FAILED
	ErrNotRetryable = errors.New("only failed screenings can be retried")
	// ErrNoResume is returned when an application has no classified résumé
	ErrNoResume = errors.New("application has no classified résumé")
	// ErrCancelled is returned by a worker whose result was cancelled while
	// it was running
	ErrCancelled = errors.New("screening was cancelled")
)

// InputError is a failure caused by the application's data. It is never
// retried.
type InputError struct {
	Message string
	Cause   error
}

func (e *InputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid input: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid input: %s", e.Message)
}

func (e *InputError) Unwrap() error {
	return e.Cause
}

// TransientError is a failure of an external dependency that may succeed
// on a later attempt
type TransientError struct {
	Stage string
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Cause)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the queue should redeliver a job that failed
// with err. Unclassified errors are treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var inputErr *InputError
	if errors.As(err, &inputErr) {
		return false
	}
	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrNoResume),
		errors.Is(err, ErrCancelled),
		errors.Is(err, ErrCannotCancel),
		errors.Is(err, ErrNotRetryable),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
