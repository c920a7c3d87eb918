package connector

import (
	"errors"
	"fmt"

	"github.com/jonathan/role-tracker/internal/fetch"
	"github.com/jonathan/role-tracker/internal/types"
)

// TransientFetchError is a failure that may succeed on retry: timeouts,
// connection resets, 429 and 5xx.
type TransientFetchError struct {
	SourceType types.SourceType
	Err        error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("%s: transient fetch failure: %v", e.SourceType, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// PermanentFetchError is a failure that retrying will not fix: unknown board,
// bad token, malformed payload. NotFound is set for 404-class responses.
type PermanentFetchError struct {
	SourceType types.SourceType
	NotFound   bool
	Err        error
}

func (e *PermanentFetchError) Error() string {
	return fmt.Sprintf("%s: permanent fetch failure: %v", e.SourceType, e.Err)
}

func (e *PermanentFetchError) Unwrap() error {
	return e.Err
}

// Classify wraps err in the matching fetch error type. Already classified
// errors pass through.
func Classify(st types.SourceType, err error) error {
	if err == nil {
		return nil
	}

	var transient *TransientFetchError
	var permanent *PermanentFetchError
	if errors.As(err, &transient) || errors.As(err, &permanent) {
		return err
	}

	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) {
		if fetchErr.Transient() {
			return &TransientFetchError{SourceType: st, Err: err}
		}
		return &PermanentFetchError{SourceType: st, NotFound: fetchErr.NotFound(), Err: err}
	}

	return &PermanentFetchError{SourceType: st, Err: err}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var transient *TransientFetchError
	return errors.As(err, &transient)
}

// IsNotFound reports whether err means the board does not exist.
func IsNotFound(err error) bool {
	var permanent *PermanentFetchError
	return errors.As(err, &permanent) && permanent.NotFound
}
