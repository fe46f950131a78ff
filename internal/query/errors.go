package query

import (
	"errors"
	"fmt"
)

// ErrInvalidFilter is returned when a Filter is malformed or
// contradictory: negative paging fields, an unknown date shorthand, or
// an occasions request missing a required field. Never retried.
var ErrInvalidFilter = errors.New("invalid filter")

// ErrHookContract is returned when a registered PredicateExtender
// returns a malformed predicate list. Continuing would silently corrupt
// the query semantics, so this is fatal for the call.
var ErrHookContract = errors.New("predicate extender contract violation")

// StoreError wraps a failure in the underlying event store. The engine
// performs no retries; callers unwrap to reach the driver error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("event store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

func invalidFilterf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFilter, fmt.Sprintf(format, args...))
}
